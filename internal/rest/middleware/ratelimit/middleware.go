package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robalyx/draftguard/internal/rest/middleware/ip"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/robalyx/draftguard/pkg/utils"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	errBlocked    = "temporarily blocked for repeated rate limit violations"
	errRateLimit  = "rate limit exceeded"
	headerRetryAt = "Retry-After"
)

type limiterState struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	strikes      int       // Number of times client has violated rate limit
	blockedUntil time.Time // Time until client is blocked for repeated violations
}

// Middleware implements rate limiting for API requests.
type Middleware struct {
	limiters *utils.TTLMap[string, *limiterState]
	config   *config.RateLimit
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new rate limiting middleware.
func New(config *config.RateLimit, logger *zap.Logger) *Middleware {
	// Use the longer of block duration or burst window * 2 for TTL
	ttl := time.Second * time.Duration(config.Burst*2)
	if blockTTL := time.Second * time.Duration(config.BlockDuration*2); blockTTL > ttl {
		ttl = blockTTL
	}

	return &Middleware{
		limiters: utils.NewTTLMap[string, *limiterState](ttl),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Close stops the limiter sweeper.
func (m *Middleware) Close() {
	m.limiters.Close()
}

// AsRESTMiddleware returns a bunrouter middleware handler for rate limiting.
// It must run after the ip middleware.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		clientIP := ip.FromContext(req.Context())
		if allowed, retryAfter, msg := m.checkRateLimit(clientIP); !allowed {
			// Add Retry-After header if there's a wait time
			if retryAfter > 0 {
				seconds := max(int(retryAfter.Round(time.Second)/time.Second), 1)
				w.Header().Set(headerRetryAt, strconv.Itoa(seconds))
			}

			http.Error(w, msg, http.StatusTooManyRequests)
			return nil
		}
		return next(w, req)
	}
}

// getLimiter returns the rate limiter state for the specified IP.
func (m *Middleware) getLimiter(clientIP string) *limiterState {
	return m.limiters.GetOrCreate(clientIP, func() *limiterState {
		return &limiterState{
			limiter: rate.NewLimiter(rate.Limit(m.config.RequestsPerSecond), m.config.Burst),
		}
	})
}

// checkRateLimit checks if the request should be allowed and updates violation tracking.
func (m *Middleware) checkRateLimit(clientIP string) (bool, time.Duration, string) {
	state := m.getLimiter(clientIP)

	state.mu.Lock()
	defer state.mu.Unlock()

	now := m.now()

	// Check if client is blocked
	if !state.blockedUntil.IsZero() && now.Before(state.blockedUntil) {
		retryAfter := state.blockedUntil.Sub(now)
		m.logger.Debug("Client is temporarily blocked",
			zap.String("ip", clientIP),
			zap.Duration("retry_after", retryAfter))
		return false, retryAfter, errBlocked
	}

	// Try to reserve a token
	reservation := state.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return m.strike(state, clientIP, now, 0)
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return m.strike(state, clientIP, now, delay)
	}

	// Reset strikes on successful request
	state.strikes = 0
	return true, 0, ""
}

// strike records a violation and blocks the client once the strike limit is reached.
func (m *Middleware) strike(state *limiterState, clientIP string, now time.Time, delay time.Duration) (bool, time.Duration, string) {
	state.strikes++

	if state.strikes >= m.config.StrikeLimit {
		blockDuration := time.Duration(m.config.BlockDuration) * time.Second
		state.blockedUntil = now.Add(blockDuration)
		state.strikes = 0

		m.logger.Debug("Client exceeded strike limit and is now blocked",
			zap.String("ip", clientIP),
			zap.Int("strikes", m.config.StrikeLimit),
			zap.Duration("block_duration", blockDuration))

		return false, blockDuration, errBlocked
	}

	m.logger.Debug("Rate limit exceeded",
		zap.String("ip", clientIP),
		zap.Duration("delay", delay),
		zap.Int("strikes", state.strikes))

	return false, delay, errRateLimit
}
