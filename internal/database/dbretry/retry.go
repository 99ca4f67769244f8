package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robalyx/draftguard/internal/database/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Policy controls how a storage operation is retried.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultPolicy is used by Operation, NoResult and Transaction.
var DefaultPolicy = Policy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxElapsedTime:  30 * time.Second,
	MaxRetries:      5,
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
		backoff.WithInitialInterval(p.InitialInterval),
		backoff.WithMaxInterval(p.MaxInterval),
	), p.MaxRetries)
	return backoff.WithContext(b, ctx)
}

// retryableCodes are the PostgreSQL SQLSTATE codes worth another attempt.
var retryableCodes = map[string]struct{}{
	"08000": {}, // connection_exception
	"08001": {}, // sqlclient_unable_to_establish_sqlconnection
	"08003": {}, // connection_does_not_exist
	"08004": {}, // sqlserver_rejected_establishment_of_sqlconnection
	"08006": {}, // connection_failure
	"08007": {}, // transaction_resolution_unknown
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53000": {}, // insufficient_resources
	"53300": {}, // too_many_connections
	"55P03": {}, // lock_not_available
	"57P01": {}, // admin_shutdown
	"57P03": {}, // cannot_connect_now
}

var networkErrorFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"connection refused",
	"i/o timeout",
	"EOF",
}

// IsRetryableError checks if the given error is worth retrying.
// Optimistic concurrency conflicts are not: the caller owns the read-modify-write loop.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, types.ErrConflict) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		_, ok := retryableCodes[pgerr.Field('C')]
		return ok
	}

	if types.IsTransient(err) {
		return true
	}

	msg := err.Error()
	for _, fragment := range networkErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// OperationWith runs operation under the given policy.
// Errors left after the retries are exhausted are wrapped in a types.TransientError.
func OperationWith[T any](
	ctx context.Context, policy Policy, name string, operation func(context.Context) (T, error),
) (T, error) {
	var lastErr error
	permanent := false

	result, err := backoff.RetryWithData(func() (T, error) {
		result, err := operation(ctx)
		if err != nil && !IsRetryableError(err) {
			permanent = true
			return result, backoff.Permanent(err)
		}
		lastErr = err
		return result, err
	}, policy.backOff(ctx))
	if err == nil || permanent {
		return result, err
	}

	if lastErr == nil {
		lastErr = err
	}
	return result, &types.TransientError{Op: name, Err: fmt.Errorf("failed after retries: %w", lastErr)}
}

// Operation wraps a database operation with retry logic.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	return OperationWith(ctx, DefaultPolicy, "database operation", operation)
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	_, err := OperationWith(ctx, DefaultPolicy, "database operation", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// Transaction wraps a database transaction with retry logic.
func Transaction(ctx context.Context, db bun.IDB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}
