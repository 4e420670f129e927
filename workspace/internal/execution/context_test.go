package execution

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/common/middleware"
)

func TestBuild(t *testing.T) {
	actor := &Actor{ID: "u1", Companies: map[string]Role{"c1": RoleAdmin, "c2": RoleMember}}

	ec, err := Build(RequestInfo{CompanyID: "c1", Actor: actor, RequestID: "r1", Method: "GET", URL: "/x"})
	require.NoError(t, err)
	assert.Equal(t, "u1", ec.User.ID)
	assert.Equal(t, RoleAdmin, ec.User.Role)
	assert.Equal(t, "c1", ec.Company.ID)
	assert.Equal(t, TransportHTTP, ec.Transport)
	assert.Equal(t, "r1", ec.RequestID)
	assert.True(t, ec.IsAdmin())
	assert.True(t, ec.IsMember())

	ec, err = Build(RequestInfo{CompanyID: "c2", Actor: actor, Transport: TransportWS})
	require.NoError(t, err)
	assert.Equal(t, TransportWS, ec.Transport)
	assert.True(t, ec.IsMember())
	assert.False(t, ec.IsAdmin())

	ec, err = Build(RequestInfo{CompanyID: "c3", Actor: actor})
	require.NoError(t, err)
	assert.Equal(t, RoleNone, ec.User.Role)
	assert.False(t, ec.IsMember())
}

func TestBuild_Errors(t *testing.T) {
	actor := &Actor{ID: "u1"}

	_, err := Build(RequestInfo{Actor: actor})
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, err = Build(RequestInfo{CompanyID: "   ", Actor: actor})
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, err = Build(RequestInfo{CompanyID: "c1"})
	assert.ErrorIs(t, err, ErrMissingActor)

	_, err = Build(RequestInfo{CompanyID: "c1", Actor: &Actor{}})
	assert.ErrorIs(t, err, ErrMissingActor)
}

func TestFromRequest(t *testing.T) {
	actor := &Actor{ID: "u1", Companies: map[string]Role{"c1": RoleMember}}

	var got *Context
	var gotErr error
	mux := http.NewServeMux()
	mux.HandleFunc("GET /companies/{company_id}/things", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = FromRequest(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/companies/c1/things?limit=5", nil)
	ctx := middleware.WithRequestID(req.Context(), "req-9")
	ctx = WithActor(ctx, actor)
	mux.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	require.NoError(t, gotErr)
	assert.Equal(t, "c1", got.Company.ID)
	assert.Equal(t, "u1", got.User.ID)
	assert.Equal(t, "req-9", got.RequestID)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/companies/c1/things?limit=5", got.URL)
}

func TestFromRequest_NoActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("company_id", "c1")
	_, err := FromRequest(req)
	assert.ErrorIs(t, err, ErrMissingActor)
}

func TestActorFromContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	_, ok = ActorFromContext(WithActor(context.Background(), nil))
	assert.False(t, ok)

	a, ok := ActorFromContext(WithActor(context.Background(), &Actor{ID: "u"}))
	assert.True(t, ok)
	assert.Equal(t, "u", a.ID)
}
