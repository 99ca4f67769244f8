package ip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robalyx/draftguard/internal/rest/middleware/header"
	"github.com/robalyx/draftguard/internal/rest/middleware/ip"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap/zaptest"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		headerCheck bool
		remoteAddr  string
		headers     map[string]string
		wantCode    int
		wantIP      string
	}{
		{
			name:       "remote address",
			remoteAddr: "203.0.113.7:4410",
			wantCode:   http.StatusOK,
			wantIP:     "203.0.113.7",
		},
		{
			name:        "forwarded through trusted proxy",
			headerCheck: true,
			remoteAddr:  "10.1.2.3:80",
			headers:     map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.9"},
			wantCode:    http.StatusOK,
			wantIP:      "198.51.100.4",
		},
		{
			name:        "forwarded header from untrusted peer is ignored",
			headerCheck: true,
			remoteAddr:  "203.0.113.7:4410",
			headers:     map[string]string{"X-Forwarded-For": "198.51.100.4"},
			wantCode:    http.StatusOK,
			wantIP:      "203.0.113.7",
		},
		{
			name:        "real ip header",
			headerCheck: true,
			remoteAddr:  "127.0.0.1:9000",
			headers:     map[string]string{"X-Real-IP": "192.0.2.55"},
			wantCode:    http.StatusOK,
			wantIP:      "192.0.2.55",
		},
		{
			name:       "unparseable remote address",
			remoteAddr: "not-an-address",
			wantCode:   http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger := zaptest.NewLogger(t)
			cfg := &config.IPConfig{
				EnableHeaderCheck: tt.headerCheck,
				TrustedProxies:    []string{"127.0.0.1", "10.0.0.0/8"},
				CustomHeaders:     []string{"X-Forwarded-For", "X-Real-IP"},
			}

			var gotIP string
			router := bunrouter.New(bunrouter.Use(
				header.New(logger).AsRESTMiddleware,
				ip.New(logger, cfg).AsRESTMiddleware,
			))
			router.GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
				gotIP = ip.FromContext(req.Context())
				w.WriteHeader(http.StatusOK)
				return nil
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantIP, gotIP)
		})
	}
}

func TestAdminIDFromHeader(t *testing.T) {
	t.Parallel()

	var adminID string
	router := bunrouter.New(bunrouter.Use(header.New(zaptest.NewLogger(t)).AsRESTMiddleware))
	router.GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
		adminID = header.FromAdminID(req.Context())
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(header.AdminIDHeader, "  admin-1 ")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "admin-1", adminID)
}
