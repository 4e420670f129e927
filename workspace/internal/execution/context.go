// Package execution derives the per-request execution context: who is
// acting, in which company, and over which transport.
package execution

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/teamspace-hq/teamspace/common/middleware"
)

var (
	// ErrMissingTenant is returned when no company id can be derived from the request.
	ErrMissingTenant = errors.New("missing company id")
	// ErrMissingActor is returned when the request carries no authenticated actor.
	ErrMissingActor = errors.New("missing authenticated actor")
)

// Transport kinds.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Role is the actor's role within a company.
type Role string

const (
	RoleNone   Role = ""
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated principal as established by the auth middleware.
type Actor struct {
	ID        string
	Companies map[string]Role
}

// User is the actor as seen from one company.
type User struct {
	ID   string
	Role Role
}

type Company struct {
	ID string
}

// Context is immutable once built; pass it by pointer and never modify it.
type Context struct {
	User      User
	Company   Company
	Transport string
	RequestID string
	Method    string
	URL       string
}

// IsMember reports whether the actor belongs to the company (admins included).
func (c *Context) IsMember() bool {
	return c.User.Role == RoleMember || c.User.Role == RoleAdmin
}

// IsAdmin reports whether the actor administers the company.
func (c *Context) IsAdmin() bool {
	return c.User.Role == RoleAdmin
}

// RequestInfo is the raw material Build works from.
type RequestInfo struct {
	CompanyID string
	Actor     *Actor
	Transport string
	RequestID string
	Method    string
	URL       string
}

// Build derives an execution context. It performs no I/O.
func Build(info RequestInfo) (*Context, error) {
	companyID := strings.TrimSpace(info.CompanyID)
	if companyID == "" {
		return nil, ErrMissingTenant
	}
	if info.Actor == nil || info.Actor.ID == "" {
		return nil, ErrMissingActor
	}

	transport := info.Transport
	if transport == "" {
		transport = TransportHTTP
	}

	return &Context{
		User:      User{ID: info.Actor.ID, Role: info.Actor.Companies[companyID]},
		Company:   Company{ID: companyID},
		Transport: transport,
		RequestID: info.RequestID,
		Method:    info.Method,
		URL:       info.URL,
	}, nil
}

// FromRequest builds the context of an HTTP request routed with a
// {company_id} path wildcard.
func FromRequest(r *http.Request) (*Context, error) {
	actor, _ := ActorFromContext(r.Context())
	return Build(RequestInfo{
		CompanyID: r.PathValue("company_id"),
		Actor:     actor,
		Transport: TransportHTTP,
		RequestID: middleware.GetRequestID(r.Context()),
		Method:    r.Method,
		URL:       r.URL.RequestURI(),
	})
}

type actorKey struct{}

// WithActor stores the authenticated actor in ctx.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(*Actor)
	return actor, ok && actor != nil
}
