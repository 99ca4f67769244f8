package review

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/robalyx/draftguard/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const maxConcurrentEnforcements = 4

var (
	// ErrEnforcementUnavailable is returned while the circuit breaker is open.
	ErrEnforcementUnavailable = errors.New("user-status service unavailable")
	// ErrEnforcementRejected is returned when the user-status service refused the change.
	ErrEnforcementRejected = errors.New("user-status service rejected the request")
)

// StandingApplier changes the standing of a user in the external user-status service.
type StandingApplier interface {
	ApplyStanding(ctx context.Context, userID string, action enum.ActionType) error
}

// NewStandingApplier returns the HTTP applier when an endpoint is configured
// and a logging no-op otherwise.
func NewStandingApplier(cfg *config.Review, logger *zap.Logger) StandingApplier {
	if cfg.EnforcementURL == "" {
		logger.Warn("No enforcement endpoint configured, standing changes will only be logged")
		return NewLoggingApplier(logger)
	}
	return NewHTTPApplier(cfg, http.DefaultTransport, logger)
}

// LoggingApplier only logs standing changes.
type LoggingApplier struct {
	logger *zap.Logger
}

// NewLoggingApplier creates a LoggingApplier.
func NewLoggingApplier(logger *zap.Logger) *LoggingApplier {
	return &LoggingApplier{logger: logger.Named("standing")}
}

// ApplyStanding implements StandingApplier.
func (l *LoggingApplier) ApplyStanding(_ context.Context, userID string, action enum.ActionType) error {
	l.logger.Info("Standing change not enforced, no endpoint configured",
		zap.String("userID", userID),
		zap.String("action", action.String()))
	return nil
}

type standingRequest struct {
	UserID string          `json:"userId"`
	Action enum.ActionType `json:"action"`
}

// statusError is a non-2xx response of the user-status service.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("user-status service responded %d: %s", e.code, e.body)
}

// HTTPApplier posts standing changes to the user-status service.
// Calls go through a circuit breaker and are retried on server errors.
type HTTPApplier struct {
	endpoint  string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	semaphore *semaphore.Weighted
	retry     utils.RetryOptions
	logger    *zap.Logger
}

// NewHTTPApplier creates an HTTPApplier using the given transport.
func NewHTTPApplier(cfg *config.Review, transport http.RoundTripper, logger *zap.Logger) *HTTPApplier {
	logger = logger.Named("standing")

	settings := gobreaker.Settings{
		Name:        "user-status",
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
		Timeout:     time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitBreaker.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// A rejected request means the service is healthy.
			var se *statusError
			return err == nil || (errors.As(err, &se) && se.code < http.StatusInternalServerError)
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	retry := utils.GetEnforcementRetryOptions()
	retry.Retryable = isRetryableEnforcement

	return &HTTPApplier{
		endpoint: cfg.EnforcementURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.EnforcementTimeout) * time.Millisecond,
		},
		breaker:   gobreaker.NewCircuitBreaker(settings),
		semaphore: semaphore.NewWeighted(maxConcurrentEnforcements),
		retry:     retry,
		logger:    logger,
	}
}

// ApplyStanding implements StandingApplier.
func (h *HTTPApplier) ApplyStanding(ctx context.Context, userID string, action enum.ActionType) error {
	if err := h.semaphore.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer h.semaphore.Release(1)

	body, err := sonic.Marshal(standingRequest{UserID: userID, Action: action})
	if err != nil {
		return fmt.Errorf("failed to encode standing request: %w", err)
	}

	_, err = utils.WithRetry(ctx, func() (struct{}, error) {
		_, err := h.breaker.Execute(func() (any, error) {
			return nil, h.post(ctx, body)
		})
		return struct{}{}, err
	}, h.retry)

	var se *statusError
	switch {
	case err == nil:
		h.logger.Info("Applied standing change",
			zap.String("userID", userID),
			zap.String("action", action.String()))
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %w", ErrEnforcementUnavailable, err)
	case errors.As(err, &se) && se.code < http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrEnforcementRejected, err)
	default:
		return err
	}
}

func (h *HTTPApplier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(msg))}
}

func isRetryableEnforcement(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError || se.code == http.StatusTooManyRequests
	}
	return true
}
