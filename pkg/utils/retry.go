package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions contains configuration for retry behavior.
type RetryOptions struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64

	// Retryable reports whether a failed attempt may be retried.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// GetEnforcementRetryOptions returns retry options for calls to the user-status service.
func GetEnforcementRetryOptions() RetryOptions {
	return RetryOptions{
		MaxElapsedTime:  10 * time.Second,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxRetries:      2,
	}
}

// GetAttemptRetryOptions returns options that make exactly maxAttempts calls
// with the given starting delay between them.
func GetAttemptRetryOptions(maxAttempts int, initial time.Duration) RetryOptions {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return RetryOptions{
		MaxElapsedTime:  0,
		InitialInterval: initial,
		MaxInterval:     initial * 8,
		MaxRetries:      uint64(maxAttempts - 1),
	}
}

// WithRetry executes the given operation with exponential backoff using provided options.
func WithRetry[T any](ctx context.Context, operation func() (T, error), opts RetryOptions) (T, error) {
	var result T

	// Configure exponential backoff
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(opts.MaxElapsedTime),
		backoff.WithInitialInterval(opts.InitialInterval),
		backoff.WithMaxInterval(opts.MaxInterval),
	), opts.MaxRetries)

	backoffOperation := func() error {
		var err error
		result, err = operation()
		if err != nil && opts.Retryable != nil && !opts.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(backoffOperation, backoff.WithContext(b, ctx))
	return result, err
}
