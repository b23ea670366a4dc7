package circuitbreaker

import "time"

// Config mirrors the gobreaker settings the service exposes. A breaker trips
// after FailureThreshold consecutive failures, stays open for Timeout, then
// lets MaxRequests probes through. Interval resets the closed-state counts.
type Config struct {
	Name             string
	Enabled          bool
	MaxRequests      uint
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint

	// IsSuccessful marks errors that should not count against the backend,
	// such as a rejected statement on a healthy server.
	IsSuccessful func(err error) bool

	OnStateChange func(name, from, to string)
}
