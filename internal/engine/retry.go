package engine

import (
	"context"
	"time"
)

// Backoff computes the delay before the next retry attempt. The strategy is
// linear: base × number of failed attempts so far, so delays grow 1×, 2×,
// 3× the configured retry_delay. Exponential backoff is deliberately not
// offered; a single documented strategy keeps retry timing predictable.
func Backoff(base time.Duration, failures int) time.Duration {
	if base <= 0 || failures <= 0 {
		return 0
	}
	return base * time.Duration(failures)
}

// WaitForBackoff sleeps for the computed backoff duration or returns early
// if the context is cancelled during the wait.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
