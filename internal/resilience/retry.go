package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Backoff returns an exponential delay for attempt (1-based). Jitter is a
// fraction, e.g. 0.2 spreads the delay by up to 20% either way.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	attempt = max(attempt, 1)
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*jitter)
}

// RetryPolicy bounds how a call is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(error) bool
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	attempts := max(policy.MaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(policy.BaseBackoff, attempt, policy.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
