package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/schema"
)

// Extractor parses unstructured input into values of the target shape T.
// The JSON Schema for T is generated once at construction (so unsupported
// shapes fail before any network call) and shared by all parse calls.
type Extractor[T any] struct {
	client     providers.LLMClient
	schemaRaw  json.RawMessage
	schemaName string
	target     string

	model       string
	temperature *float64
	maxTokens   int
	strict      bool
	policy      RetryPolicy
	logger      *slog.Logger
}

// Option configures an Extractor at construction time.
type Option func(*settings)

type settings struct {
	model       string
	temperature *float64
	maxTokens   int
	strict      bool
	policy      RetryPolicy
	logger      *slog.Logger
}

// WithModel sets the model, or deployment name on Azure-style endpoints.
// Empty means the client's configured default.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithTemperature overrides the default sampling temperature of zero.
func WithTemperature(t float64) Option {
	return func(s *settings) { s.temperature = &t }
}

// WithoutTemperature omits the temperature parameter entirely, for models
// that reject it.
func WithoutTemperature() Option {
	return func(s *settings) { s.temperature = nil }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(s *settings) { s.maxTokens = n }
}

// WithStrictSchema requests mechanical schema enforcement from the endpoint.
// The default is non-strict: the model is guided but not forced, trading
// reliability for broader model compatibility; output is validated locally
// either way.
func WithStrictSchema() Option {
	return func(s *settings) { s.strict = true }
}

// WithRetryPolicy replaces the default backoff/retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *settings) { s.policy = p }
}

// WithoutRetry limits every parse call to a single attempt.
func WithoutRetry() Option {
	return func(s *settings) { s.policy = RetryPolicy{Attempts: 0} }
}

// WithLogger sets the logger for attempt-level diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// ParseOption configures a single parse call.
type ParseOption func(*parseSettings)

type parseSettings struct {
	considerations string
	policy         *RetryPolicy
}

// WithConsiderations appends free-text guidance to the system instruction,
// verbatim, to steer extraction edge cases (e.g. "set missing titles to
// null").
func WithConsiderations(text string) ParseOption {
	return func(p *parseSettings) { p.considerations = text }
}

// WithPolicy overrides the extractor's retry policy for this call.
func WithPolicy(policy RetryPolicy) ParseOption {
	return func(p *parseSettings) { p.policy = &policy }
}

// New creates an Extractor for target shape T. Schema generation failures
// surface here, before any parse call is attempted.
func New[T any](client providers.LLMClient, opts ...Option) (*Extractor[T], error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}

	t := reflect.TypeFor[T]()
	schemaRaw, err := schema.ForType(t)
	if err != nil {
		return nil, err
	}

	s := settings{
		temperature: zeroTemperature(),
		policy:      DefaultRetryPolicy(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &Extractor[T]{
		client:      client,
		schemaRaw:   schemaRaw,
		schemaName:  schemaName(t),
		target:      t.String(),
		model:       s.model,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
		strict:      s.strict,
		policy:      s.policy,
		logger:      s.logger,
	}, nil
}

// Parse extracts a T from free text.
func (e *Extractor[T]) Parse(ctx context.Context, text string, opts ...ParseOption) (T, error) {
	return e.parse(ctx, Text(text), opts)
}

// ParseImage extracts a T from an image, referenced by URL or supplied as
// inline bytes with a declared MIME type.
func (e *Extractor[T]) ParseImage(ctx context.Context, img ImageInput, opts ...ParseOption) (T, error) {
	return e.parse(ctx, img, opts)
}

func (e *Extractor[T]) parse(ctx context.Context, input Input, opts []ParseOption) (T, error) {
	var ps parseSettings
	for _, opt := range opts {
		opt(&ps)
	}

	policy := e.policy
	if ps.policy != nil {
		policy = *ps.policy
	}

	var out T
	err := orchestrate(ctx, policy, e.logger, func(lastRaw string) error {
		var zero T
		out = zero

		res, err := e.complete(ctx, input, ps.considerations, lastRaw)
		if err != nil {
			return err
		}
		text, err := validateResult(res)
		if err != nil {
			return err
		}
		return decodeInto(text, e.schemaRaw, e.target, &out)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// complete issues one schema-constrained completion request.
func (e *Extractor[T]) complete(ctx context.Context, input Input, considerations, lastRaw string) (*providers.ChatResult, error) {
	req := &providers.ChatRequest{
		Messages:    buildMessages(input, considerations, lastRaw),
		Model:       e.model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
		ResponseFormat: &providers.ResponseFormat{
			Name:   e.schemaName,
			Schema: e.schemaRaw,
			Strict: e.strict,
		},
	}

	res, err := e.client.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	return res, nil
}

// Schema returns the generated JSON Schema document for T.
func (e *Extractor[T]) Schema() json.RawMessage {
	return e.schemaRaw
}

func zeroTemperature() *float64 {
	t := 0.0
	return &t
}

// schemaName derives the response-format name advertised to the endpoint.
func schemaName(t reflect.Type) string {
	name := t.Name()
	if name == "" {
		return "extraction"
	}
	return strings.ToLower(name)
}
