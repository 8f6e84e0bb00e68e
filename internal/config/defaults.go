package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the default configuration. Endpoint, API key, and
// deployment have no usable defaults and must be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		Provider:       "openai",
		Endpoint:       "",
		APIVersion:     "",
		APIKey:         "${OPENAI_API_KEY}",
		Deployment:     "",
		TimeoutSeconds: 120,
		MaxRetries:     3,
		RateLimit:      600,
		Temperature:    0,
		MaxTokens:      0,
		StrictSchema:   false,
		Retry: RetryConfig{
			Attempts:    3,
			BaseDelayMS: 1000,
			MaxDelayMS:  30000,
		},
	}
}

const fileHeader = `# distill configuration
#
# Values may reference environment variables with ${VAR_NAME}.
# Every key can also be set via environment: DISTILL_ENDPOINT,
# DISTILL_API_KEY, DISTILL_DEPLOYMENT, ...
`

// WriteDefault writes a commented default configuration file. Refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	body, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	return os.WriteFile(path, append([]byte(fileHeader), body...), 0o644)
}
