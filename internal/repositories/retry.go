package repositories

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy bounds optimistic-concurrency retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is used when a service is configured without one.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}

// Retry runs fn until it succeeds, fails with anything other than
// ErrConflict, or the attempts run out. Exhaustion returns an error wrapping
// ErrConflict. onRetry, if set, is called before each new attempt.
func Retry(ctx context.Context, policy RetryPolicy, onRetry func(attempt int), fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, ErrConflict) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt)
		}
		// Exponential backoff with full jitter
		backoff := policy.BaseDelay * time.Duration(1<<(attempt-1))
		var sleep time.Duration
		if backoff > 0 {
			sleep = time.Duration(rand.Int63n(int64(backoff))) + backoff/2
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}
