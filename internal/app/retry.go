package app

import (
	"context"
	"time"
)

const defaultBackoffBase = 2 * time.Second

// Retry runs fn up to attempts times, sleeping a growing delay between
// tries. It is the one retry policy every outbound call goes through:
// transient failures are re-attempted, integrity failures get a clean
// re-attempt, anything else returns immediately. Zero attempts or base
// selects the shared defaults.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, backoffDelay(base, attempt)); err != nil {
				return err
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) && KindOf(lastErr) != FailIntegrity {
			return lastErr
		}
	}
	return lastErr
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = defaultBackoffBase
	}
	delay := time.Duration(attempt-1) * base
	if delay > 5*base {
		delay = 5 * base
	}
	return delay
}
