package ports

import "context"

type (
	// Pinger is a dependency /health can probe.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	ProbeResult struct {
		Healthy   bool   `json:"healthy"`
		Error     string `json:"error,omitempty"`
		LatencyMS int64  `json:"latency_ms"`
	}
)
