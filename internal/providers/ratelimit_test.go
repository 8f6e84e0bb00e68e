package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_AllowsBurstUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(60)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst within the bucket should not block, took %v", elapsed)
	}
}

func TestRateLimiter_BlocksWhenExhausted(t *testing.T) {
	// 60 rpm refills one token per second; drain the bucket first.
	limiter := NewRateLimiter(60)
	limiter.mu.Lock()
	limiter.tokens = 0
	limiter.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("Wait() should fail when the bucket is empty and the context expires")
	}
}

func TestRateLimiter_DefaultsOnNonPositiveLimit(t *testing.T) {
	for _, rpm := range []int{0, -5} {
		limiter := NewRateLimiter(rpm)
		if limiter.requestsPerMinute != 600 {
			t.Errorf("NewRateLimiter(%d) rpm = %d, want 600", rpm, limiter.requestsPerMinute)
		}
	}
}
