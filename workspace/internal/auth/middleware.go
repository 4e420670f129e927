package auth

import (
	"net/http"
	"strings"

	"github.com/teamspace-hq/teamspace/common/httputil"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
)

// Middleware authenticates requests and stores the actor in the context.
type Middleware struct {
	validator *Validator
}

func NewMiddleware(validator *Validator) *Middleware {
	return &Middleware{validator: validator}
}

// RequireAuth rejects requests without a valid bearer token. Browsers cannot
// set headers on websocket upgrades, so an access_token query parameter is
// accepted on those.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := httputil.BearerToken(r)
		if !ok && isWebsocketUpgrade(r) {
			token = r.URL.Query().Get("access_token")
			ok = token != ""
		}
		if !ok {
			httputil.WriteUnauthorized(w, "missing bearer token")
			return
		}

		claims, err := m.validator.Validate(token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := execution.WithActor(r.Context(), claims.Actor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
