package queries

import (
	"context"
	"sync"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	probeTimeout = 2 * time.Second
)

type (
	FetchHealthReportQuery struct{}

	FetchLivenessQuery struct{}

	HealthResult struct {
		Status       string                       `json:"status"`
		Version      string                       `json:"version"`
		Commit       string                       `json:"commit"`
		Uptime       string                       `json:"uptime"`
		Dependencies map[string]ports.ProbeResult `json:"dependencies"`
	}

	LivenessResult struct {
		Status string `json:"status"`
	}

	FetchHealthReportQueryHandler = decorator.QueryHandler[FetchHealthReportQuery, *HealthResult]
	FetchLivenessQueryHandler     = decorator.QueryHandler[FetchLivenessQuery, *LivenessResult]

	fetchHealthReportQueryHandler struct {
		probes  map[string]ports.Pinger
		started time.Time
	}

	fetchLivenessQueryHandler struct{}
)

// NewFetchHealthReportQueryHandler pings every named dependency in parallel,
// each bounded by probeTimeout. One failure makes the report unhealthy.
func NewFetchHealthReportQueryHandler(
	probes map[string]ports.Pinger,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) FetchHealthReportQueryHandler {
	return decorator.ApplyQueryDecorators[FetchHealthReportQuery, *HealthResult](
		fetchHealthReportQueryHandler{probes: probes, started: time.Now()},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h fetchHealthReportQueryHandler) Execute(ctx context.Context, _ FetchHealthReportQuery) (*HealthResult, error) {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	report := &HealthResult{
		Status:       statusHealthy,
		Version:      config.ServiceVersion,
		Commit:       config.CommitSHA,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Dependencies: make(map[string]ports.ProbeResult, len(h.probes)),
	}

	for name, probe := range h.probes {
		wg.Go(func() {
			result := ping(ctx, probe)

			mu.Lock()
			defer mu.Unlock()

			report.Dependencies[name] = result
			if !result.Healthy {
				report.Status = statusUnhealthy
			}
		})
	}

	wg.Wait()

	return report, nil
}

func ping(ctx context.Context, probe ports.Pinger) ports.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := probe.Ping(ctx)

	result := ports.ProbeResult{Healthy: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		result.Error = err.Error()
	}

	return result
}

func NewFetchLivenessQueryHandler(
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) FetchLivenessQueryHandler {
	return decorator.ApplyQueryDecorators[FetchLivenessQuery, *LivenessResult](
		fetchLivenessQueryHandler{},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (fetchLivenessQueryHandler) Execute(context.Context, FetchLivenessQuery) (*LivenessResult, error) {
	return &LivenessResult{Status: "ok"}, nil
}
