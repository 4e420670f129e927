package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamspace_workspace_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamspace_workspace_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Search metrics
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamspace_workspace_search_duration_seconds",
			Help:    "Duration of message index queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	SearchRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamspace_workspace_search_rate_limited_total",
			Help: "Total number of search requests rejected by the rate limiter",
		},
	)

	IndexErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamspace_workspace_index_errors_total",
			Help: "Total number of failed message index writes",
		},
		[]string{"operation"},
	)

	// Realtime metrics
	RoomSignings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamspace_workspace_room_signings_total",
			Help: "Total number of room signing attempts by outcome",
		},
		[]string{"outcome"}, // signed, unavailable, error
	)

	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamspace_workspace_notify_failures_total",
			Help: "Total number of realtime events that could not be published",
		},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teamspace_workspace_websocket_connections",
			Help: "Current number of open websocket connections",
		},
	)
)

// RecordSigning counts one room-signing outcome.
func RecordSigning(unavailable bool, err error) {
	switch {
	case unavailable:
		RoomSignings.WithLabelValues("unavailable").Inc()
	case err != nil:
		RoomSignings.WithLabelValues("error").Inc()
	default:
		RoomSignings.WithLabelValues("signed").Inc()
	}
}
