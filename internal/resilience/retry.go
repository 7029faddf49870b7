package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a retry loop. Delays grow linearly: the wait after
// failed attempt n is n*Base.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	// Sleep replaces the context-aware timer, mostly for tests.
	Sleep func(context.Context, time.Duration) error
}

// DefaultRetryPolicy is three attempts, one second apart at first.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Base: time.Second}
}

// LinearBackoff returns the wait after the given failed attempt.
func LinearBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return base * time.Duration(attempt)
}

// Retry calls fn until it succeeds, returns an error retryable rejects, or
// the attempts run out. It returns the number of attempts made and the last
// error.
func Retry(ctx context.Context, target string, p RetryPolicy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			RetryAttempts.WithLabelValues(target, "success").Inc()
			return attempt, nil
		}
		RetryAttempts.WithLabelValues(target, "failure").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return attempt, err
		}
		if retryable != nil && !retryable(err) {
			return attempt, err
		}
		if attempt == attempts {
			return attempt, err
		}
		if serr := sleep(ctx, LinearBackoff(p.Base, attempt)); serr != nil {
			return attempt, serr
		}
	}
	return attempts, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
