package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseWait: time.Millisecond, MaxWait: 4 * time.Millisecond}
	calls := 0
	err := Retry(context.Background(), policy, nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, BaseWait: time.Millisecond}
	permanent := errors.New("constraint violation")
	calls := 0
	err := Retry(context.Background(), policy, func(err error) bool { return false }, func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseWait: time.Millisecond}
	transient := errors.New("connection reset")
	calls := 0
	err := Retry(context.Background(), policy, nil, func(ctx context.Context) error {
		calls++
		return transient
	})
	require.ErrorIs(t, err, transient)
	require.Equal(t, 3, calls)
}

func TestRetryHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{Attempts: 3, BaseWait: time.Minute}
	err := Retry(ctx, policy, nil, func(ctx context.Context) error {
		return errors.New("flaky")
	})
	require.ErrorIs(t, err, context.Canceled)
}
