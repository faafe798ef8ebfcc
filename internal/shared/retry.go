package shared

import (
	"context"
	"time"
)

// RetryPolicy bounds the backoff applied to transient persistence errors.
type RetryPolicy struct {
	Attempts int
	BaseWait time.Duration
	MaxWait  time.Duration
}

// DefaultRetryPolicy matches the store access pattern: latency does not
// matter, but repeated writes against a flapping connection should back off.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseWait: 100 * time.Millisecond, MaxWait: 2 * time.Second}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. The retryable predicate decides which errors
// are transient; a nil predicate retries everything.
func Retry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func(context.Context) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	wait := policy.BaseWait
	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if policy.MaxWait > 0 && wait > policy.MaxWait {
				wait = policy.MaxWait
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}
