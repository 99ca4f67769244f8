package header

import (
	"context"
	"net/http"
	"strings"

	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// AdminIDHeader carries the id of the admin acting through the dashboard.
const AdminIDHeader = "X-Admin-ID"

type (
	remoteAddrCtxKey struct{}
	headersCtxKey    struct{}
	adminIDCtxKey    struct{}
)

// FromRemoteAddr retrieves the remote address from context.
func FromRemoteAddr(ctx context.Context) string {
	if addr, ok := ctx.Value(remoteAddrCtxKey{}).(string); ok {
		return addr
	}
	return ""
}

// FromHeaders retrieves the request headers from context.
func FromHeaders(ctx context.Context) (http.Header, bool) {
	headers, ok := ctx.Value(headersCtxKey{}).(http.Header)
	return headers, ok
}

// FromAdminID retrieves the acting admin id from context. It is empty when the header was not sent.
func FromAdminID(ctx context.Context) string {
	if id, ok := ctx.Value(adminIDCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// Middleware handles header extraction and storage.
type Middleware struct {
	logger *zap.Logger
}

// New creates a new header middleware.
func New(logger *zap.Logger) *Middleware {
	return &Middleware{
		logger: logger,
	}
}

// AsRESTMiddleware returns a bunrouter middleware handler for header extraction.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		ctx := m.storeHeadersInContext(req.Context(), req.RemoteAddr, req.Header)
		return next(w, req.WithContext(ctx))
	}
}

// storeHeadersInContext stores the remote address, a copy of the headers and the admin id.
func (m *Middleware) storeHeadersInContext(ctx context.Context, remoteAddr string, headers http.Header) context.Context {
	ctx = context.WithValue(ctx, remoteAddrCtxKey{}, remoteAddr)
	ctx = context.WithValue(ctx, headersCtxKey{}, headers.Clone())

	if adminID := strings.TrimSpace(headers.Get(AdminIDHeader)); adminID != "" {
		ctx = context.WithValue(ctx, adminIDCtxKey{}, adminID)
	}

	m.logger.Debug("Stored request headers",
		zap.String("addr", remoteAddr))

	return ctx
}
