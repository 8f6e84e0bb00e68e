package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIName = "openai"

// OpenAIConfig holds configuration for the SDK-backed client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string        // endpoint URI; empty means the public OpenAI API
	APIVersion   string        // set for Azure-style endpoints (deployment routing)
	DefaultModel string        // model name, or deployment name on Azure
	Timeout      time.Duration // per-request network timeout
	MaxRetries   int           // SDK transport retries on transient failures
	RateLimit    int           // requests per minute (0 = default)
	HTTPClient   *http.Client  // optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK. The SDK's
// own retry policy covers transient network and rate-limit failures, so this
// client issues exactly one logical request per Chat call.
type OpenAIClient struct {
	defaultModel string
	client       openai.Client
	limiter      *RateLimiter
}

// NewOpenAIClient creates a new SDK-backed client. When cfg.APIVersion is set
// the endpoint is treated as an Azure deployment and authenticated with the
// api-key header scheme.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.APIVersion != "" {
		opts = append(opts,
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	return &OpenAIClient{
		defaultModel: cfg.DefaultModel,
		client:       openai.NewClient(opts...),
		limiter:      NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.ResponseFormat != nil {
		var schemaDoc any
		if err := json.Unmarshal(req.ResponseFormat.Schema, &schemaDoc); err != nil {
			return nil, fmt.Errorf("invalid response format schema: %w", err)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.ResponseFormat.Name,
					Strict: openai.Bool(req.ResponseFormat.Strict),
					Schema: schemaDoc,
				},
			},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	result := &ChatResult{
		Provider:      OpenAIName,
		ModelUsed:     completion.Model,
		RequestID:     requestID,
		Raw:           json.RawMessage(completion.RawJSON()),
		PromptTokens:  int(completion.Usage.PromptTokens),
		TotalTokens:   int(completion.Usage.TotalTokens),
		ExecutionTime: time.Since(start),
	}
	result.CompletionTokens = int(completion.Usage.CompletionTokens)

	for _, choice := range completion.Choices {
		result.Parts = append(result.Parts, ResultPart{Text: choice.Message.Content})
	}
	if len(completion.Choices) > 0 {
		result.FinishReason = completion.Choices[0].FinishReason
		result.Content = completion.Choices[0].Message.Content
	}

	return result, nil
}

// convertMessages maps transport-neutral messages onto SDK message params.
func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			out = append(out, openai.SystemMessage(m.Content))
			continue
		}

		if len(m.Parts) == 0 {
			out = append(out, openai.UserMessage(m.Content))
			continue
		}

		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case PartImageURL:
				img := openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageURL}
				if p.Detail != "" {
					img.Detail = p.Detail
				}
				parts = append(parts, openai.ImageContentPart(img))
			default:
				parts = append(parts, openai.TextContentPart(p.Text))
			}
		}
		out = append(out, openai.UserMessage(parts))
	}
	return out
}
