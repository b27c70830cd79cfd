package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds configuration for bounded retry operations.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// Wait is the fixed delay between attempts
	Wait time.Duration

	// RetryableErrors determines which errors should trigger a retry.
	// If nil, all errors are considered retryable.
	RetryableErrors func(error) bool
}

// Retry executes a function with a fixed-wait bounded retry loop.
//
// Attempts to execute the provided function up to MaxAttempts times, waiting
// a fixed delay between attempts. Supports context cancellation and
// configurable error filtering.
//
// Returns:
//   - nil if the function succeeds within the attempt limit
//   - "max retries exceeded" wrapping the last error if all attempts fail
//   - "retry cancelled" wrapping the context error if the context is cancelled
//   - the original error if it is determined to be non-retryable
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err

			if config.RetryableErrors != nil && !config.RetryableErrors(err) {
				return err
			}

			if attempt == config.MaxAttempts {
				break
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(config.Wait):
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
