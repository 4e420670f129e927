// Package server assembles the workspace HTTP surface.
package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamspace-hq/teamspace/common/httputil"
	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/common/middleware"
	"github.com/teamspace-hq/teamspace/workspace/internal/applications"
	"github.com/teamspace-hq/teamspace/workspace/internal/auth"
	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/messages"
	"github.com/teamspace-hq/teamspace/workspace/internal/metrics"
	"github.com/teamspace-hq/teamspace/workspace/internal/ratelimit"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Dependencies are the handlers and policies the router wires together.
type Dependencies struct {
	Applications *crud.Controller[applications.Key, applications.CompanyApplication, applications.Patch]
	Channels     *crud.Controller[channels.Key, channels.Channel, channels.Patch]
	Messages     *crud.Controller[messages.Key, messages.Message, messages.Patch]
	Search       *crud.Controller[messages.Key, messages.MessageWithReplies, messages.Patch]
	Threads      *messages.ThreadHandler
	Gateway      http.Handler
	Auth         *auth.Middleware

	SearchLimiter    ratelimit.Limiter
	SearchRetryAfter time.Duration
	AllowedOrigins   []string
	Readiness        map[string]ReadinessCheck
	Logger           *slog.Logger
}

type router struct {
	mux    *http.ServeMux
	deps   Dependencies
	logger *slog.Logger
}

// NewRouter constructs a ServeMux with the workspace API routes registered.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SearchLimiter == nil {
		deps.SearchLimiter = ratelimit.NoOpLimiter{}
	}
	rt := &router{mux: http.NewServeMux(), deps: deps, logger: deps.Logger}

	// Health endpoints
	rt.mux.HandleFunc("GET /healthz", rt.health)
	rt.mux.HandleFunc("GET /readyz", rt.ready)

	// Prometheus metrics
	rt.mux.Handle("GET /metrics", promhttp.Handler())

	const company = "/api/v1/companies/{company_id}"

	apps := deps.Applications
	rt.api("GET "+company+"/applications", apps.List)
	rt.api("GET "+company+"/applications/{application_id}", apps.Get)
	rt.api("POST "+company+"/applications/{application_id}", apps.Save)
	rt.api("PUT "+company+"/applications/{application_id}", apps.Save)
	rt.api("DELETE "+company+"/applications/{application_id}", apps.Delete)

	limit := ratelimit.Middleware(deps.SearchLimiter, deps.SearchRetryAfter, deps.Logger)
	rt.handle("GET "+company+"/search", deps.Auth.RequireAuth(limit(http.HandlerFunc(deps.Search.List))))

	rt.api("POST "+company+"/threads", deps.Threads.Create)
	msgs := deps.Messages
	rt.api("GET "+company+"/threads/{thread_id}/messages", msgs.List)
	rt.api("POST "+company+"/threads/{thread_id}/messages", msgs.Save)
	rt.api("GET "+company+"/threads/{thread_id}/messages/{message_id}", msgs.Get)
	rt.api("POST "+company+"/threads/{thread_id}/messages/{message_id}", msgs.Save)
	rt.api("PUT "+company+"/threads/{thread_id}/messages/{message_id}", msgs.Save)
	rt.api("DELETE "+company+"/threads/{thread_id}/messages/{message_id}", msgs.Delete)

	chans := deps.Channels
	rt.api("GET "+company+"/workspaces/{workspace_id}/channels", chans.List)
	rt.api("POST "+company+"/workspaces/{workspace_id}/channels", chans.Save)
	rt.api("GET "+company+"/workspaces/{workspace_id}/channels/{channel_id}", chans.Get)
	rt.api("POST "+company+"/workspaces/{workspace_id}/channels/{channel_id}", chans.Save)
	rt.api("PUT "+company+"/workspaces/{workspace_id}/channels/{channel_id}", chans.Save)
	rt.api("DELETE "+company+"/workspaces/{workspace_id}/channels/{channel_id}", chans.Delete)

	if deps.Gateway != nil {
		rt.handle("GET /api/v1/ws", deps.Auth.RequireAuth(deps.Gateway))
	}

	cors := middleware.CORS(middleware.DefaultCORSConfig(deps.AllowedOrigins))
	return middleware.RequestID(cors(rt.mux))
}

// api registers an authenticated route.
func (rt *router) api(pattern string, fn http.HandlerFunc) {
	rt.handle(pattern, rt.deps.Auth.RequireAuth(fn))
}

// handle registers h with metrics and an access log labelled by pattern.
func (rt *router) handle(pattern string, h http.Handler) {
	rt.mux.Handle(pattern, rt.instrumented(pattern, h))
}

func (rt *router) instrumented(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(elapsed.Seconds())

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		rt.logger.LogAttrs(r.Context(), level, "request completed",
			logging.Method(r.Method),
			logging.Route(pattern),
			logging.Status(rec.status),
			logging.Duration(elapsed),
			slog.String("request_id", middleware.GetRequestID(r.Context())))
	})
}

func (rt *router) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *router) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(rt.deps.Readiness))
	for name := range rt.deps.Readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := rt.deps.Readiness[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	httputil.WriteJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack forwards websocket hijacking support to the underlying writer when available.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacker not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
