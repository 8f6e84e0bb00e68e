package extract

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy configures the corrective retry loop. Attempts is the retry
// budget: a budget of N allows at most N+1 total attempts.
type RetryPolicy struct {
	Attempts  uint
	BaseDelay time.Duration // median delay seed (default 1s)
	MaxDelay  time.Duration // delay cap (default 30s)
}

// DefaultRetryPolicy matches the documented defaults: three retries with
// decorrelated-jitter backoff seeded at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// delayType implements decorrelated jitter: each delay is drawn uniformly
// between the base delay and three times the previous delay, capped at
// MaxDelay. The median grows exponentially while consecutive delays stay
// uncorrelated, which spreads out synchronized retry storms.
func (p RetryPolicy) delayType() retry.DelayTypeFunc {
	prev := p.BaseDelay
	return func(n uint, err error, config *retry.Config) time.Duration {
		low := float64(p.BaseDelay)
		high := float64(3 * prev)
		if high <= low {
			high = low + 1
		}
		d := time.Duration(low + rand.Float64()*(high-low))
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
		prev = d
		return d
	}
}

// orchestrate runs attempt under the retry policy, threading the single piece
// of cross-attempt state: the last raw malformed output. A structural
// mismatch routes the next attempt onto the corrective path (the prompt gains
// the prior output plus a fix-it directive); every other failure retries
// blind with the identical prompt. The final error is always the last
// attempt's own error, never a synthetic "retries exhausted".
func orchestrate(ctx context.Context, policy RetryPolicy, logger *slog.Logger, attempt func(lastRaw string) error) error {
	policy = policy.withDefaults()

	var lastRaw string
	return retry.Do(
		func() error {
			err := attempt(lastRaw)
			if err == nil {
				return nil
			}
			var mismatch *MismatchError
			if errors.As(err, &mismatch) {
				lastRaw = mismatch.Raw
			} else {
				lastRaw = ""
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(policy.Attempts+1),
		retry.DelayType(policy.delayType()),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Cancellation aborts the whole loop, not just the attempt.
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("parse attempt failed",
				"attempt", n+1,
				"corrective", lastRaw != "",
				"error", err,
			)
		}),
	)
}
