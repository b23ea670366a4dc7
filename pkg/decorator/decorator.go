// Package decorator wraps command and query handlers with the cross-cutting
// concerns every use case shares: logging, metrics and tracing.
package decorator

import (
	"context"
	"fmt"
	"strings"

	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Command any
	Query   any
	Result  any

	// CommandHandler changes state. R carries what the caller needs back,
	// such as an affected row count or a new id.
	CommandHandler[C Command, R any] interface {
		Handle(ctx context.Context, cmd C) (R, error)
	}

	QueryHandler[Q Query, R Result] interface {
		Execute(ctx context.Context, query Q) (R, error)
	}
)

// ApplyCommandDecorators wraps handler so that logging sees the full latency,
// metrics sit inside it and tracing is innermost. Nil tracer providers and
// metrics clients leave their layer out.
func ApplyCommandDecorators[C Command, R any](
	handler CommandHandler[C, R],
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) CommandHandler[C, R] {
	if tracerProvider != nil {
		handler = commandTracingDecorator[C, R]{base: handler, tracerProvider: tracerProvider}
	}

	if metricsClient != nil {
		handler = commandMetricsDecorator[C, R]{base: handler, client: metricsClient}
	}

	return commandLoggingDecorator[C, R]{base: handler, logger: log}
}

// ApplyQueryDecorators is the query side of ApplyCommandDecorators.
func ApplyQueryDecorators[Q Query, R Result](
	handler QueryHandler[Q, R],
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) QueryHandler[Q, R] {
	if tracerProvider != nil {
		handler = queryTracingDecorator[Q, R]{base: handler, tracerProvider: tracerProvider}
	}

	if metricsClient != nil {
		handler = queryMetricsDecorator[Q, R]{base: handler, client: metricsClient}
	}

	return queryLoggingDecorator[Q, R]{base: handler, logger: log}
}

// generateActionName is the bare type name of a command or query value.
func generateActionName(v any) string {
	name := fmt.Sprintf("%T", v)

	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	return strings.TrimPrefix(name, "*")
}
