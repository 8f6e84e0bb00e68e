package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// doRequest makes an HTTP request with retry on transient failures. The raw
// response body is returned alongside the decoded response for diagnostics.
func (c *CompatClient) doRequest(ctx context.Context, path string, body *compatRequest) (*compatResponse, json.RawMessage, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if c.shouldRetry(resp.StatusCode) {
			lastErr = fmt.Errorf("completion endpoint error (status %d): %s", resp.StatusCode, string(respBody))
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("completion endpoint error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var wireResp compatResponse
		if err := json.Unmarshal(respBody, &wireResp); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		// Some endpoints return 200 with an error object or no choices for
		// transient backend conditions.
		if retryable, err := c.shouldRetryResponse(&wireResp); retryable {
			lastErr = err
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if wireResp.Error != nil {
			return nil, respBody, fmt.Errorf("completion endpoint error: %s", wireResp.Error.Message)
		}

		return &wireResp, respBody, nil
	}

	return nil, nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// shouldRetry returns true for status codes that should be retried.
func (c *CompatClient) shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	case 520, 521, 522, 523, 524: // Cloudflare errors
		return true
	default:
		return statusCode >= 500
	}
}

// shouldRetryResponse checks if a 200 OK response has retryable content issues.
func (c *CompatClient) shouldRetryResponse(resp *compatResponse) (bool, error) {
	if resp.Error != nil {
		code := fmt.Sprintf("%v", resp.Error.Code)
		switch code {
		case "overloaded", "rate_limit_exceeded", "503", "502", "500":
			return true, fmt.Errorf("completion endpoint error (retryable): %s", resp.Error.Message)
		}
		return false, nil
	}

	if len(resp.Choices) == 0 {
		return true, fmt.Errorf("empty choices in response (model=%s, id=%s)", resp.Model, resp.ID)
	}

	return false, nil
}

// sleepWithJitter sleeps with exponential backoff and jitter, respecting
// context cancellation.
func (c *CompatClient) sleepWithJitter(ctx context.Context, attempt int) {
	baseDelay := c.retryDelay * time.Duration(1<<attempt)
	if baseDelay > 10*time.Second {
		baseDelay = 10 * time.Second
	}

	// -20% to +30%
	jitter := time.Duration(float64(baseDelay) * (0.8 + 0.5*rand.Float64()))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}
