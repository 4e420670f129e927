package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
)

const (
	secret = "test-secret"
	issuer = "identity"
)

func TestIssueValidate(t *testing.T) {
	token, err := NewIssuer(secret, issuer, time.Minute).Issue("u1", map[string]string{"c1": "admin", "c2": "member", "c3": "owner"})
	require.NoError(t, err)

	claims, err := NewValidator(secret, issuer).Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	actor := claims.Actor()
	assert.Equal(t, "u1", actor.ID)
	assert.Equal(t, execution.RoleAdmin, actor.Companies["c1"])
	assert.Equal(t, execution.RoleMember, actor.Companies["c2"])
	_, known := actor.Companies["c3"]
	assert.False(t, known, "unknown roles are dropped")
}

func TestValidate_Rejects(t *testing.T) {
	good := NewIssuer(secret, issuer, time.Minute)
	v := NewValidator(secret, issuer)

	wrongSecret, _ := NewIssuer("other", issuer, time.Minute).Issue("u1", nil)
	wrongIssuer, _ := NewIssuer(secret, "elsewhere", time.Minute).Issue("u1", nil)

	expiredClaims := Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte(secret))

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}).SignedString([]byte(secret))

	_, err := v.Validate(wrongSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Validate(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Validate(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)
	_, err = v.Validate(noUser)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = good.Issue("", nil)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	token, err := NewIssuer(secret, issuer, time.Minute).Issue("u1", map[string]string{"c1": "member"})
	require.NoError(t, err)

	var seen *execution.Actor
	h := NewMiddleware(NewValidator(secret, issuer)).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = execution.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		status int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "/", http.StatusNoContent},
		{"missing", func(r *http.Request) {}, "/", http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "/", http.StatusUnauthorized},
		{"query on plain request", func(r *http.Request) {}, "/?access_token=" + token, http.StatusUnauthorized},
		{"query on upgrade", func(r *http.Request) { r.Header.Set("Upgrade", "websocket") }, "/?access_token=" + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "u1", seen.ID)
			}
		})
	}
}
