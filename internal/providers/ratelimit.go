package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter shared by a client's
// in-flight requests.
type RateLimiter struct {
	mu sync.Mutex

	// Configuration
	requestsPerMinute int
	windowSeconds     float64

	// Token bucket state
	tokens     float64
	lastUpdate time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
}

// NewRateLimiter creates a new rate limiter. Non-positive limits fall back to
// a permissive default.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		windowSeconds:     60.0,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		// Time until the next token accrues.
		deficit := 1.0 - r.tokens
		wait := time.Duration(deficit / r.refillRate() * float64(time.Second))
		r.mu.Unlock()

		start := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			r.mu.Lock()
			r.totalWaited += time.Since(start)
			r.mu.Unlock()
		}
	}
}

// refill adds tokens based on elapsed time. Caller must hold mu.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.refillRate()
	if max := float64(r.requestsPerMinute); r.tokens > max {
		r.tokens = max
	}
}

// refillRate returns tokens accrued per second. Caller must hold mu.
func (r *RateLimiter) refillRate() float64 {
	return float64(r.requestsPerMinute) / r.windowSeconds
}
