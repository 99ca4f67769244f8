package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, cfg *config.RateLimit) (*bunrouter.Router, *Middleware, *time.Time) {
	t.Helper()

	m := New(cfg, zaptest.NewLogger(t))
	t.Cleanup(m.Close)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	router := bunrouter.New(bunrouter.Use(m.AsRESTMiddleware))
	router.GET("/ping", func(w http.ResponseWriter, _ bunrouter.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
	return router, m, &clock
}

func doPing(router http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	return rec
}

func TestRateLimitBurst(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t, &config.RateLimit{
		RequestsPerSecond: 1, Burst: 2, StrikeLimit: 5, BlockDuration: 60,
	})

	assert.Equal(t, http.StatusNoContent, doPing(router).Code)
	assert.Equal(t, http.StatusNoContent, doPing(router).Code)

	rec := doPing(router)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(headerRetryAt))
	assert.Contains(t, rec.Body.String(), errRateLimit)
}

func TestRateLimitBlocksAfterStrikes(t *testing.T) {
	t.Parallel()

	router, _, clock := newTestRouter(t, &config.RateLimit{
		RequestsPerSecond: 1, Burst: 1, StrikeLimit: 2, BlockDuration: 30,
	})

	require.Equal(t, http.StatusNoContent, doPing(router).Code)
	require.Equal(t, http.StatusTooManyRequests, doPing(router).Code)

	rec := doPing(router)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get(headerRetryAt))
	assert.Contains(t, rec.Body.String(), errBlocked)

	// Tokens refill but the block still holds.
	*clock = clock.Add(10 * time.Second)
	rec = doPing(router)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "20", rec.Header().Get(headerRetryAt))

	*clock = clock.Add(21 * time.Second)
	assert.Equal(t, http.StatusNoContent, doPing(router).Code)
}
