// Package providers contains chat-completion transports. Every transport
// implements LLMClient and handles its own transient-failure policy (network
// errors, rate limits, 5xx); semantic retries live in the extract package.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient is the transport boundary for chat-completion requests. One call
// issues exactly one logical request; transport-level retry on transient
// failures is an implementation detail of the client.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openai", "compat").
	Name() string
}

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// Image detail hints, passed through to the transport unmodified.
const (
	DetailLow  = "low"
	DetailHigh = "high"
)

// Message represents a chat message. Parts takes precedence over Content when
// set (multimodal user messages); system messages are always plain text.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// ContentPart is one block of a multimodal user message.
type ContentPart struct {
	Type     string `json:"type"` // "text" or "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"` // remote URL or data URL
	Detail   string `json:"detail,omitempty"`    // "", "low", "high"
}

// ResponseFormat constrains model output to a JSON Schema document. Strict
// false guides the model without mechanically forcing conformance, which is
// why output is validated again locally.
type ResponseFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty). On Azure-style
	// endpoints this is the deployment name.
	Model string `json:"model,omitempty"`

	// Temperature is a pointer so it can be omitted entirely for models
	// that reject the parameter. nil means "send the client default".
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// Finish reasons reported by completion endpoints.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// ResultPart is one content block of a completion. Text may be empty even
// when the part is present.
type ResultPart struct {
	Text string `json:"text"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	// Parts holds the completion's content blocks in order. Content is the
	// first part's text for convenience.
	Content string       `json:"content"`
	Parts   []ResultPart `json:"parts,omitempty"`

	FinishReason string `json:"finish_reason,omitempty"`

	// Raw is the response body as received, kept for diagnostics.
	Raw json.RawMessage `json:"-"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID     string        `json:"request_id"`
	ExecutionTime time.Duration `json:"execution_time"`
}
