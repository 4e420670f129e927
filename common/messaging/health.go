package messaging

import (
	"context"
	"fmt"
	"time"
)

// RTTer is implemented by clients that can measure a broker round trip.
type RTTer interface {
	RTT() (time.Duration, error)
}

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// CheckClientHealth reports whether client is connected and, when the
// client supports it, the broker round-trip time.
func CheckClientHealth(ctx context.Context, client Client) HealthStatus {
	status := HealthStatus{}
	if client == nil {
		status.Error = "client is nil"
		return status
	}
	if err := ctx.Err(); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	if r, ok := client.(RTTer); ok {
		rtt, err := r.RTT()
		if err != nil {
			status.Error = fmt.Sprintf("health check failed: %v", err)
			return status
		}
		status.Latency = rtt
	}
	return status
}
