package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/distill/extract"
	"github.com/jackzampolin/distill/internal/config"
)

var (
	parseSchemaFile     string
	parseSchemaName     string
	parseConsiderations string
	parseImageFile      string
	parseImageURL       string
	parseMIMEType       string
	parseDetail         string
	parseModel          string
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Extract schema-conforming JSON from text or an image",
	Long: `Parse extracts structured JSON from unstructured input.

Text is read from the given file, or from stdin when no file is given.
Use --image-file or --image-url to extract from an image instead.

The target shape is described by a JSON Schema document (--schema).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		schemaRaw, err := os.ReadFile(parseSchemaFile)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}

		input, err := buildInput(args)
		if err != nil {
			return err
		}

		client, err := cfg.NewClient()
		if err != nil {
			return err
		}

		policy := cfg.RetryPolicy()
		req := extract.RawRequest{
			Input:          input,
			Schema:         schemaRaw,
			SchemaName:     parseSchemaName,
			Model:          parseModel,
			Considerations: parseConsiderations,
			Temperature:    cfg.TemperaturePtr(),
			MaxTokens:      cfg.MaxTokens,
			Strict:         cfg.StrictSchema,
			Policy:         &policy,
		}

		doc, err := extract.ParseRaw(cmd.Context(), client, req)
		if err != nil {
			return err
		}

		var pretty map[string]any
		if err := json.Unmarshal(doc, &pretty); err == nil {
			if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				doc = out
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(doc))
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseSchemaFile, "schema", "", "JSON Schema file describing the target shape (required)")
	parseCmd.Flags().StringVar(&parseSchemaName, "schema-name", "", "response format name advertised to the endpoint")
	parseCmd.Flags().StringVarP(&parseConsiderations, "considerations", "c", "", "free-text guidance for extraction edge cases")
	parseCmd.Flags().StringVar(&parseImageFile, "image-file", "", "extract from a local image file instead of text")
	parseCmd.Flags().StringVar(&parseImageURL, "image-url", "", "extract from a remote image URL instead of text")
	parseCmd.Flags().StringVar(&parseMIMEType, "mime-type", "", "MIME type for --image-file (default: inferred)")
	parseCmd.Flags().StringVar(&parseDetail, "detail", "", "image detail hint: low or high")
	parseCmd.Flags().StringVar(&parseModel, "model", "", "override the configured deployment/model")
	_ = parseCmd.MarkFlagRequired("schema")
}

func buildInput(args []string) (extract.Input, error) {
	switch {
	case parseImageURL != "":
		return extract.ImageURL{URL: parseImageURL, Detail: parseDetail}, nil

	case parseImageFile != "":
		data, err := os.ReadFile(parseImageFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read image file: %w", err)
		}
		mime := parseMIMEType
		if mime == "" {
			mime = http.DetectContentType(data)
		}
		return extract.Image{Data: data, MIMEType: mime, Detail: parseDetail}, nil

	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return extract.Text(data), nil

	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, fmt.Errorf("no input: provide a file argument, stdin, or an image flag")
		}
		return extract.Text(data), nil
	}
}
