package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/distill/internal/providers"
)

// RawRequest drives the dynamic extraction path: the target is described by a
// caller-supplied JSON Schema document instead of a Go type. Used when shapes
// are only known at runtime (e.g. the CLI's --schema flag).
type RawRequest struct {
	Input  Input
	Schema json.RawMessage
	// SchemaName is the response-format name advertised to the endpoint.
	// Defaults to "extraction".
	SchemaName string

	Model          string
	Considerations string
	Temperature    *float64
	MaxTokens      int
	Strict         bool

	// Policy overrides the default retry policy when non-nil.
	Policy *RetryPolicy

	Logger *slog.Logger
}

// ParseRaw extracts a JSON document conforming to req.Schema from req.Input.
// It runs the same pipeline as Extractor.Parse, but the result stays a raw
// document validated against the caller's schema.
func ParseRaw(ctx context.Context, client providers.LLMClient, req RawRequest) (json.RawMessage, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if req.Input == nil {
		return nil, fmt.Errorf("input is required")
	}
	if len(req.Schema) == 0 {
		return nil, fmt.Errorf("schema is required")
	}
	if !json.Valid(req.Schema) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}

	name := req.SchemaName
	if name == "" {
		name = "extraction"
	}

	policy := DefaultRetryPolicy()
	if req.Policy != nil {
		policy = *req.Policy
	}

	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var out json.RawMessage
	err := orchestrate(ctx, policy, logger, func(lastRaw string) error {
		chatReq := &providers.ChatRequest{
			Messages:    buildMessages(req.Input, req.Considerations, lastRaw),
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			ResponseFormat: &providers.ResponseFormat{
				Name:   name,
				Schema: req.Schema,
				Strict: req.Strict,
			},
		}

		res, err := client.Chat(ctx, chatReq)
		if err != nil {
			return fmt.Errorf("completion request failed: %w", err)
		}
		text, err := validateResult(res)
		if err != nil {
			return err
		}
		doc, err := decodeRaw(text, req.Schema, name)
		if err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
