package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "distill",
	Short: "Structured data extraction from text and images using LLMs",
	Long: `Distill extracts strongly-typed, schema-conforming JSON from unstructured
text or images by delegating interpretation to an LLM chat-completion
endpoint.

Model output is validated against the requested JSON Schema; responses that
do not conform trigger a corrective retry carrying the model's own prior
output and a fix-it directive.`,
	Version: versionString(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./distill.yaml or ~/.distill/distill.yaml)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Local .env is a convenience for API keys; absence is fine.
		_ = godotenv.Load()

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
