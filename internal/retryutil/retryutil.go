// Package retryutil retries transient failures with a fixed delay.
package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const defaultRetryDelay = 2 * time.Second

// Do runs fn up to attempts times, sleeping delay between tries. It stops
// early when the context is done and returns the last error.
func Do(ctx context.Context, logger *slog.Logger, name string, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if logger != nil {
			logger.Warn(name+"_attempt_failed", "attempt", i+1, "error", err.Error())
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
