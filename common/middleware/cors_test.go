package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name         string
		origins      []string
		origin       string
		method       string
		wantAllowed  string
		wantStatus   int
		wantCredHdr  bool
		wantNoCORSHd bool
	}{
		{
			name:        "exact origin",
			origins:     []string{"https://app.example.com"},
			origin:      "https://app.example.com",
			method:      http.MethodGet,
			wantAllowed: "https://app.example.com",
			wantStatus:  http.StatusOK,
			wantCredHdr: true,
		},
		{
			name:        "subdomain wildcard",
			origins:     []string{"*.example.com"},
			origin:      "https://chat.example.com",
			method:      http.MethodGet,
			wantAllowed: "https://chat.example.com",
			wantStatus:  http.StatusOK,
			wantCredHdr: true,
		},
		{
			name:         "unknown origin passes through without headers",
			origins:      []string{"https://app.example.com"},
			origin:       "https://evil.example.org",
			method:       http.MethodGet,
			wantStatus:   http.StatusOK,
			wantNoCORSHd: true,
		},
		{
			name:         "unknown origin preflight is rejected",
			origins:      []string{"https://app.example.com"},
			origin:       "https://evil.example.org",
			method:       http.MethodOptions,
			wantStatus:   http.StatusForbidden,
			wantNoCORSHd: true,
		},
		{
			name:        "allowed preflight",
			origins:     []string{"*"},
			origin:      "http://localhost:3000",
			method:      http.MethodOptions,
			wantAllowed: "http://localhost:3000",
			wantStatus:  http.StatusNoContent,
			wantCredHdr: true,
		},
		{
			name:         "no origin header",
			origins:      []string{"*"},
			method:       http.MethodGet,
			wantStatus:   http.StatusOK,
			wantNoCORSHd: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(DefaultCORSConfig(tt.origins))(next)
			req := httptest.NewRequest(tt.method, "/api/v1/companies/c/applications", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantNoCORSHd {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
				return
			}
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))
			if tt.wantCredHdr {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}
