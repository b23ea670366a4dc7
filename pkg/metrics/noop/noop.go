// Package noop is the metrics.Client used when metrics are switched off.
package noop

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
)

type MetricsClient struct{}

func NewMetricsClient() MetricsClient { return MetricsClient{} }

func (MetricsClient) Inc(context.Context, string, any, ...attribute.KeyValue) {}

// Handler answers 404 so a scrape against a disabled instance is visible.
func (MetricsClient) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "metrics are disabled", http.StatusNotFound)
	})
}

func (MetricsClient) Shutdown(context.Context) error { return nil }
