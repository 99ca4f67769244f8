package review

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/robalyx/draftguard/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestApplier(t *testing.T, handler http.HandlerFunc) *HTTPApplier {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default().Common.Review
	cfg.EnforcementURL = server.URL + "/standing"
	cfg.CircuitBreaker.MaxFailures = 2

	applier := NewHTTPApplier(&cfg, http.DefaultTransport, zaptest.NewLogger(t))
	applier.retry = utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxRetries:      2,
		Retryable:       isRetryableEnforcement,
	}
	return applier
}

func TestHTTPApplierPostsStanding(t *testing.T) {
	t.Parallel()

	var got standingRequest
	applier := newTestApplier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/standing", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"userId":"userA","action":"banned"}`, string(body))
		assert.NoError(t, sonic.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, applier.ApplyStanding(t.Context(), "userA", enum.ActionTypeBanned))
	assert.Equal(t, "userA", got.UserID)
	assert.Equal(t, enum.ActionTypeBanned, got.Action)
}

func TestHTTPApplierDoesNotRetryRejections(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	applier := newTestApplier(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown user", http.StatusNotFound)
	})

	err := applier.ApplyStanding(t.Context(), "ghost", enum.ActionTypeSuspended)
	require.ErrorIs(t, err, ErrEnforcementRejected)
	assert.Contains(t, err.Error(), "unknown user")
	assert.Equal(t, int32(1), calls.Load())

	// Rejections never open the circuit.
	err = applier.ApplyStanding(t.Context(), "ghost", enum.ActionTypeSuspended)
	require.ErrorIs(t, err, ErrEnforcementRejected)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPApplierOpensCircuit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	applier := newTestApplier(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	// Two consecutive failures trip the breaker, the third attempt is refused locally.
	err := applier.ApplyStanding(t.Context(), "userA", enum.ActionTypeBanned)
	require.ErrorIs(t, err, ErrEnforcementUnavailable)
	assert.Equal(t, int32(2), calls.Load())

	err = applier.ApplyStanding(t.Context(), "userB", enum.ActionTypeBanned)
	require.ErrorIs(t, err, ErrEnforcementUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewStandingApplier(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Common.Review
	logger := zaptest.NewLogger(t)

	noop := NewStandingApplier(&cfg, logger)
	require.IsType(t, &LoggingApplier{}, noop)
	require.NoError(t, noop.ApplyStanding(t.Context(), "userA", enum.ActionTypeBanned))

	cfg.EnforcementURL = "http://127.0.0.1:1/standing"
	assert.IsType(t, &HTTPApplier{}, NewStandingApplier(&cfg, logger))
}

func TestAllowList(t *testing.T) {
	t.Parallel()

	allow := NewAllowList([]string{"admin1", " admin2 ", ""})
	assert.True(t, allow.IsAdmin(t.Context(), "admin1"))
	assert.True(t, allow.IsAdmin(t.Context(), "admin2"))
	assert.False(t, allow.IsAdmin(t.Context(), ""))
	assert.False(t, allow.IsAdmin(t.Context(), "admin3"))
}
