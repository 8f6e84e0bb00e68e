package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CompatName = "compat"

// CompatConfig holds configuration for the OpenAI-compatible HTTP client.
// It targets endpoints that speak the /chat/completions dialect but are not
// served by the official SDK path (OpenRouter, vLLM, LM Studio, Ollama).
type CompatConfig struct {
	APIKey       string
	BaseURL      string // required, e.g. "https://openrouter.ai/api/v1"
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting
	RateLimit  int           // requests per minute (0 = default)
	MaxRetries int           // total attempts per request, including the first (default: 3)
	RetryDelay time.Duration // base delay between retries (default: 1s)
}

// CompatClient implements LLMClient against any OpenAI-compatible endpoint.
type CompatClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
	maxRetries   int
	retryDelay   time.Duration
}

// NewCompatClient creates a new OpenAI-compatible client.
func NewCompatClient(cfg CompatConfig) *CompatClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &CompatClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    NewRateLimiter(cfg.RateLimit),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *CompatClient) Name() string {
	return CompatName
}

// Chat sends a chat completion request.
func (c *CompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
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

	wireReq := compatRequest{
		Model:       model,
		Messages:    make([]compatMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	for _, m := range req.Messages {
		wireMsg := compatMessage{Role: m.Role}
		if len(m.Parts) > 0 {
			content := make([]compatContent, 0, len(m.Parts))
			for _, p := range m.Parts {
				switch p.Type {
				case PartImageURL:
					content = append(content, compatContent{
						Type:     PartImageURL,
						ImageURL: &compatImageURL{URL: p.ImageURL, Detail: p.Detail},
					})
				default:
					content = append(content, compatContent{Type: PartText, Text: p.Text})
				}
			}
			wireMsg.Content = content
		} else {
			wireMsg.Content = m.Content
		}
		wireReq.Messages = append(wireReq.Messages, wireMsg)
	}

	if req.ResponseFormat != nil {
		wireReq.ResponseFormat = newCompatResponseFormat(req.ResponseFormat)
	}

	wireResp, raw, err := c.doRequest(ctx, "/chat/completions", &wireReq)
	if err != nil {
		return nil, err
	}

	result := &ChatResult{
		Provider:         CompatName,
		ModelUsed:        wireResp.Model,
		RequestID:        requestID,
		Raw:              raw,
		PromptTokens:     wireResp.Usage.PromptTokens,
		CompletionTokens: wireResp.Usage.CompletionTokens,
		TotalTokens:      wireResp.Usage.TotalTokens,
		ExecutionTime:    time.Since(start),
	}

	for _, choice := range wireResp.Choices {
		text, err := choice.Message.ContentText()
		if err != nil {
			return nil, fmt.Errorf("failed to decode choice content: %w", err)
		}
		result.Parts = append(result.Parts, ResultPart{Text: text})
	}
	if len(wireResp.Choices) > 0 {
		result.FinishReason = wireResp.Choices[0].FinishReason
		result.Content = result.Parts[0].Text
	}

	return result, nil
}
