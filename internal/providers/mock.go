package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const MockClientName = "mock"

// MockStep scripts a single response from the mock client. Err takes
// precedence over Result when both are set.
type MockStep struct {
	Result *ChatResult
	Err    error
}

// MockClient is an LLMClient for testing. It replays a scripted sequence of
// steps (the last step repeats once the script is exhausted) and records
// every request it receives for later inspection.
type MockClient struct {
	Latency time.Duration

	mu       sync.Mutex
	steps    []MockStep
	requests []*ChatRequest
}

// NewMockClient creates a mock that always succeeds with the given text.
func NewMockClient(text string) *MockClient {
	return &MockClient{
		steps: []MockStep{{Result: TextResult(text)}},
	}
}

// NewScriptedClient creates a mock that replays steps in order.
func NewScriptedClient(steps ...MockStep) *MockClient {
	return &MockClient{steps: steps}
}

// TextResult builds a well-formed successful completion carrying text.
func TextResult(text string) *ChatResult {
	return &ChatResult{
		Content:      text,
		Parts:        []ResultPart{{Text: text}},
		FinishReason: FinishStop,
		Provider:     MockClientName,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat replays the next scripted step.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	if len(c.steps) == 0 {
		return nil, fmt.Errorf("mock client has no scripted steps")
	}

	idx := len(c.requests) - 1
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}

	step := c.steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Result, nil
}

// Requests returns a copy of all requests seen so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// CallCount returns how many requests the mock has served.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}
