// Package retry wraps flaky operations, currently session opening, with
// bounded backoff retries.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"

	"liscraper/pkg/errors"
	"liscraper/pkg/logger"
)

// Operation is a retryable unit of work.
type Operation func() error

// OperationWithResult is a retryable unit of work producing a value.
type OperationWithResult[T any] func() (T, error)

// Config holds retry behavior.
type Config struct {
	// MaxAttempts caps the number of attempts; must be at least 1.
	MaxAttempts int
	// Backoff computes per-attempt delays.
	Backoff BackoffStrategy
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool
	// Logger records retry attempts; nil disables retry logging.
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
	}
}

// DefaultRetryIf retries classified errors according to their type and
// never retries cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var classified *errors.Error
	if stderrors.As(err, &classified) {
		return errors.IsRetryable(classified.Type)
	}
	return true
}

// Do runs op until it succeeds, a non-retryable error occurs, the attempt
// cap is hit, or ctx is cancelled.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return err
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": cfg.MaxAttempts,
				"delay":        delay,
				"error":        err.Error(),
			})
		}
		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", lastErr)
		}
	}
}

// DoWithResult runs op with retries and returns its value.
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
