package ip

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/robalyx/draftguard/internal/rest/middleware/header"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type ipCtxKey struct{}

// UnknownIP is returned when no valid IP can be determined.
const UnknownIP = "unknown"

// FromContext retrieves the client IP from the context.
func FromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok {
		return ip
	}
	return UnknownIP
}

// Middleware handles IP detection and stores it in the context.
type Middleware struct {
	checker *Checker
	logger  *zap.Logger
	config  *config.IPConfig
}

// New creates a new IP middleware.
func New(logger *zap.Logger, config *config.IPConfig) *Middleware {
	return &Middleware{
		checker: NewChecker(logger, config.TrustedProxies),
		logger:  logger,
		config:  config,
	}
}

// AsRESTMiddleware returns a bunrouter middleware handler for IP detection.
// It must run after the header middleware.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		ip := m.getClientIP(req.Context())
		if ip == UnknownIP {
			http.Error(w, "Invalid IP address", http.StatusForbidden)
			return nil
		}

		ctx := context.WithValue(req.Context(), ipCtxKey{}, ip)
		return next(w, req.WithContext(ctx))
	}
}

// getClientIP extracts the client IP from the request context.
func (m *Middleware) getClientIP(ctx context.Context) string {
	remoteIP := m.getRemoteIP(ctx)
	if remoteIP == nil {
		m.logger.Debug("Failed to get valid remote IP")
		return UnknownIP
	}

	if !m.config.EnableHeaderCheck || !m.checker.IsTrustedProxy(remoteIP) {
		return remoteIP.String()
	}

	headers, ok := header.FromHeaders(ctx)
	if !ok {
		return remoteIP.String()
	}

	if ip := m.getIPFromHeaders(headers); ip != UnknownIP {
		m.logger.Debug("Found valid IP in headers", zap.String("ip", ip))
		return ip
	}
	return remoteIP.String()
}

// getRemoteIP parses the remote address stored by the header middleware.
func (m *Middleware) getRemoteIP(ctx context.Context) net.IP {
	remoteAddr := header.FromRemoteAddr(ctx)
	if remoteAddr == "" {
		return nil
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	return net.ParseIP(host)
}

// getIPFromHeaders attempts to get a valid IP from the configured headers.
func (m *Middleware) getIPFromHeaders(headers http.Header) string {
	for _, h := range m.config.CustomHeaders {
		value := headers.Get(h)
		if value == "" {
			continue
		}

		if strings.Contains(h, "Forward") {
			if validated := m.getForwardedIP(value); validated != UnknownIP {
				return validated
			}
		} else if validated := m.checker.ValidateIP(value); validated != UnknownIP {
			return validated
		}

		m.logger.Debug("IP validation failed",
			zap.String("header", h),
			zap.String("ip", value))
	}
	return UnknownIP
}

// getForwardedIP returns the right-most address that is not a trusted proxy.
func (m *Middleware) getForwardedIP(forwarded string) string {
	ips := strings.Split(forwarded, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		validated := m.checker.ValidateIP(ips[i])
		if validated == UnknownIP {
			continue
		}
		if !m.checker.IsTrustedProxy(net.ParseIP(validated)) {
			return validated
		}
	}
	return UnknownIP
}
