// Package config loads and validates connection configuration from a YAML
// file and DISTILL_-prefixed environment variables. Validation is fail-fast:
// a missing or malformed required setting surfaces before any parse call is
// attempted.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jackzampolin/distill/extract"
	"github.com/jackzampolin/distill/internal/providers"
)

// Config holds the connection and sampling configuration for a completion
// endpoint.
type Config struct {
	// Provider selects the transport: "openai" (official SDK, also Azure)
	// or "compat" (raw HTTP against any OpenAI-compatible endpoint).
	Provider string `mapstructure:"provider" yaml:"provider"`

	// Endpoint is the completion endpoint URI.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// APIVersion switches the openai provider into Azure deployment
	// routing when set. Ignored by the compat provider.
	APIVersion string `mapstructure:"api_version" yaml:"api_version"`

	// APIKey is the credential. ${ENV_VAR} references are resolved at use,
	// not at load, so the file never has to contain the secret itself.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// Deployment is the model name, or the deployment name on Azure.
	Deployment string `mapstructure:"deployment" yaml:"deployment"`

	// TimeoutSeconds is the network timeout per request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

	// MaxRetries is the transport-level retry budget for transient
	// network/rate-limit failures, distinct from the corrective retry loop.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RateLimit is requests per minute (0 = provider default).
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Temperature is the sampling temperature; TemperatureDisabled omits
	// the parameter entirely for models that reject it.
	Temperature         float64 `mapstructure:"temperature" yaml:"temperature"`
	TemperatureDisabled bool    `mapstructure:"temperature_disabled" yaml:"temperature_disabled"`

	// MaxTokens caps completion length (0 = endpoint default).
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`

	// StrictSchema requests mechanical schema enforcement from the
	// endpoint. Off by default for broader model compatibility; output is
	// validated locally either way.
	StrictSchema bool `mapstructure:"strict_schema" yaml:"strict_schema"`

	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig configures the corrective retry loop.
type RetryConfig struct {
	Attempts    uint `mapstructure:"attempts" yaml:"attempts"`
	BaseDelayMS int  `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS  int  `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
}

// ValidationError is a required setting that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Load reads configuration from cfgFile (or ./distill.yaml when empty, if
// present) and the environment, then validates it.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("provider", defaults.Provider)
	v.SetDefault("endpoint", defaults.Endpoint)
	v.SetDefault("api_version", defaults.APIVersion)
	v.SetDefault("api_key", defaults.APIKey)
	v.SetDefault("deployment", defaults.Deployment)
	v.SetDefault("timeout_seconds", defaults.TimeoutSeconds)
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("rate_limit", defaults.RateLimit)
	v.SetDefault("temperature", defaults.Temperature)
	v.SetDefault("temperature_disabled", defaults.TemperatureDisabled)
	v.SetDefault("max_tokens", defaults.MaxTokens)
	v.SetDefault("strict_schema", defaults.StrictSchema)
	v.SetDefault("retry.attempts", defaults.Retry.Attempts)
	v.SetDefault("retry.base_delay_ms", defaults.Retry.BaseDelayMS)
	v.SetDefault("retry.max_delay_ms", defaults.Retry.MaxDelayMS)

	v.SetEnvPrefix("DISTILL")
	// Nested keys map dots to underscores: retry.attempts is
	// DISTILL_RETRY_ATTEMPTS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("distill")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.distill")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the required settings.
func (c *Config) Validate() error {
	if c.Provider != "openai" && c.Provider != "compat" {
		return &ValidationError{Field: "provider", Reason: `must be "openai" or "compat"`}
	}
	if c.Endpoint == "" {
		return &ValidationError{Field: "endpoint", Reason: "is required"}
	}
	if c.ResolveAPIKey() == "" {
		return &ValidationError{Field: "api_key", Reason: "is required"}
	}
	if c.Deployment == "" {
		return &ValidationError{Field: "deployment", Reason: "is required"}
	}
	if c.TimeoutSeconds <= 0 {
		return &ValidationError{Field: "timeout_seconds", Reason: "must be positive"}
	}
	return nil
}

// ResolveAPIKey expands ${ENV_VAR} references in the configured API key.
func (c *Config) ResolveAPIKey() string {
	return ResolveEnvVars(c.APIKey)
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Timeout returns the network timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TemperaturePtr returns the sampling temperature for requests, or nil when
// the parameter is disabled.
func (c *Config) TemperaturePtr() *float64 {
	if c.TemperatureDisabled {
		return nil
	}
	t := c.Temperature
	return &t
}

// RetryPolicy converts the retry section into an extract.RetryPolicy.
func (c *Config) RetryPolicy() extract.RetryPolicy {
	return extract.RetryPolicy{
		Attempts:  c.Retry.Attempts,
		BaseDelay: time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:  time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
	}
}

// NewClient builds the configured transport.
func (c *Config) NewClient() (providers.LLMClient, error) {
	switch c.Provider {
	case "openai":
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:       c.ResolveAPIKey(),
			BaseURL:      c.Endpoint,
			APIVersion:   c.APIVersion,
			DefaultModel: c.Deployment,
			Timeout:      c.Timeout(),
			MaxRetries:   c.MaxRetries,
			RateLimit:    c.RateLimit,
		}), nil
	case "compat":
		return providers.NewCompatClient(providers.CompatConfig{
			APIKey:       c.ResolveAPIKey(),
			BaseURL:      c.Endpoint,
			DefaultModel: c.Deployment,
			Timeout:      c.Timeout(),
			MaxRetries:   c.MaxRetries,
			RateLimit:    c.RateLimit,
		}), nil
	default:
		return nil, &ValidationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", c.Provider)}
	}
}
