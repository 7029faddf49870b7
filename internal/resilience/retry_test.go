package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/resilience"
)

func recordingPolicy(delays *[]time.Duration) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		Attempts: 3,
		Base:     time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		},
	}
}

func TestRetryLinearDelays(t *testing.T) {
	var delays []time.Duration
	calls := 0
	attempts, err := resilience.Retry(context.Background(), "test", recordingPolicy(&delays), nil, func(context.Context, int) error {
		calls++
		return errors.New("unavailable")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	var delays []time.Duration
	attempts, err := resilience.Retry(context.Background(), "test", recordingPolicy(&delays), nil, func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Len(t, delays, 2)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("conflict")
	var delays []time.Duration
	attempts, err := resilience.Retry(context.Background(), "test", recordingPolicy(&delays), func(err error) bool {
		return !errors.Is(err, permanent)
	}, func(context.Context, int) error { return permanent })
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, attempts)
	require.Empty(t, delays)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resilience.Retry(ctx, "test", resilience.RetryPolicy{Attempts: 3, Base: time.Hour}, nil, func(context.Context, int) error {
		return errors.New("unavailable")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLinearBackoff(t *testing.T) {
	require.Equal(t, 300*time.Millisecond, resilience.LinearBackoff(100*time.Millisecond, 3))
	require.Equal(t, 100*time.Millisecond, resilience.LinearBackoff(0, 0))
}
