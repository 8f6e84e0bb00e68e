package providers

import (
	"encoding/json"
	"fmt"
)

// Wire types for the OpenAI-compatible /chat/completions dialect.

type compatRequest struct {
	Model          string                `json:"model"`
	Messages       []compatMessage       `json:"messages"`
	Temperature    *float64              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *compatResponseFormat `json:"response_format,omitempty"`
}

type compatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []compatContent
}

type compatContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *compatImageURL `json:"image_url,omitempty"`
}

type compatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type compatResponseFormat struct {
	Type       string           `json:"type"`
	JSONSchema compatJSONSchema `json:"json_schema"`
}

type compatJSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

func newCompatResponseFormat(rf *ResponseFormat) *compatResponseFormat {
	return &compatResponseFormat{
		Type: "json_schema",
		JSONSchema: compatJSONSchema{
			Name:   rf.Name,
			Strict: rf.Strict,
			Schema: rf.Schema,
		},
	}
}

type compatResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []compatChoice `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	// Error is returned by some endpoints when something goes wrong at the
	// API/model level even under a 200 status.
	Error *compatError `json:"error,omitempty"`
}

type compatError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"` // string or int depending on backend
}

type compatChoice struct {
	Message      compatChoiceMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type compatChoiceMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or content part list
}

// ContentText flattens a choice's content into text. Backends return either a
// plain string or a list of typed parts.
func (m compatChoiceMessage) ContentText() (string, error) {
	switch c := m.Content.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return "", fmt.Errorf("failed to marshal content: %w", err)
		}
		return string(b), nil
	}
}
