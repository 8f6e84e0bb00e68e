package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func compatTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *CompatClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewCompatClient(CompatConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DefaultModel: "test-model",
		Timeout:      5 * time.Second,
		RetryDelay:   time.Millisecond,
	})
	return srv, client
}

func okCompletion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":    "chatcmpl-1",
		"model": "test-model",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     12,
			"completion_tokens": 7,
			"total_tokens":      19,
		},
	})
	return string(body)
}

func TestCompatClient_Chat(t *testing.T) {
	var gotReq compatRequest
	var gotAuth, gotPath string

	_, client := compatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(okCompletion(`{"title":"Dune"}`)))
	})

	temp := 0.0
	res, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "extract"},
			{Role: RoleUser, Content: "Dune by Frank Herbert"},
		},
		Temperature: &temp,
		MaxTokens:   256,
		ResponseFormat: &ResponseFormat{
			Name:   "book",
			Schema: json.RawMessage(`{"type":"object"}`),
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q, want default model", gotReq.Model)
	}
	if gotReq.Temperature == nil || *gotReq.Temperature != 0 {
		t.Error("temperature 0 must be sent explicitly, not omitted")
	}
	if gotReq.MaxTokens != 256 {
		t.Errorf("max_tokens = %d", gotReq.MaxTokens)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_schema" {
		t.Fatal("response_format missing or wrong type")
	}
	if gotReq.ResponseFormat.JSONSchema.Name != "book" {
		t.Errorf("schema name = %q", gotReq.ResponseFormat.JSONSchema.Name)
	}

	if res.Content != `{"title":"Dune"}` {
		t.Errorf("content = %q", res.Content)
	}
	if res.FinishReason != FinishStop {
		t.Errorf("finish reason = %q", res.FinishReason)
	}
	if res.TotalTokens != 19 || res.PromptTokens != 12 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.TotalTokens)
	}
	if res.Provider != CompatName {
		t.Errorf("provider = %q", res.Provider)
	}
	if len(res.Raw) == 0 {
		t.Error("raw response body should be retained")
	}
}

func TestCompatClient_NoTemperature(t *testing.T) {
	var rawBody string
	_, client := compatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rawBody = string(body)
		w.Write([]byte(okCompletion("{}")))
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if strings.Contains(rawBody, `"temperature"`) {
		t.Error("nil temperature must be omitted from the wire request")
	}
}

func TestCompatClient_ImageParts(t *testing.T) {
	var gotReq compatRequest
	_, client := compatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(okCompletion("{}")))
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Parts: []ContentPart{
				{Type: PartText, Text: "describe the page"},
				{Type: PartImageURL, ImageURL: "https://example.com/p.png", Detail: DetailHigh},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	parts, ok := gotReq.Messages[0].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("content = %#v, want two parts", gotReq.Messages[0].Content)
	}
	img, _ := parts[1].(map[string]any)
	if img["type"] != PartImageURL {
		t.Errorf("part type = %v", img["type"])
	}
	url, _ := img["image_url"].(map[string]any)
	if url["url"] != "https://example.com/p.png" || url["detail"] != DetailHigh {
		t.Errorf("image_url = %v", url)
	}
}

func TestCompatClient_RetriesTransientStatus(t *testing.T) {
	calls := 0
	_, client := compatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"upstream hiccup"}}`))
			return
		}
		w.Write([]byte(okCompletion(`{"ok":true}`)))
	})

	res, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if res.Content != `{"ok":true}` {
		t.Errorf("content = %q", res.Content)
	}
}

func TestCompatClient_NoRetryOnClientError(t *testing.T) {
	calls := 0
	_, client := compatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not retry)", calls)
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestCompatClient_RetriesEmptyChoices(t *testing.T) {
	calls := 0
	_, client := compatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"id":"chatcmpl-1","model":"test-model","choices":[]}`))
			return
		}
		w.Write([]byte(okCompletion(`{"ok":true}`)))
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCompatClient_ErrorObjectUnder200(t *testing.T) {
	_, client := compatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model not found","code":"model_not_found"}}`))
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error = %v", err)
	}
}

func TestCompatClient_ExhaustsRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewCompatClient(CompatConfig{
		APIKey:     "k",
		BaseURL:    srv.URL,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !strings.Contains(err.Error(), "max retries") {
		t.Errorf("error = %v", err)
	}
}

func TestCompatChoiceMessage_ContentText(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    string
	}{
		{"string content", "hello", "hello"},
		{"nil content", nil, ""},
		{"structured content", []any{map[string]any{"type": "text", "text": "hi"}}, `[{"text":"hi","type":"text"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compatChoiceMessage{Content: tt.content}.ContentText()
			if err != nil {
				t.Fatalf("ContentText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
