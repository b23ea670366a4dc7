package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/architeacher/nocoflo/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	httpMethodKey     = "http.method"
	httpRouteKey      = "http.route"
	httpStatusCodeKey = "http.status_code"

	requestsMetric      = "http_server_requests"
	serverErrorsMetric  = "http_server_errors"
	durationMetric      = "http_server_request_duration_seconds"
	responseBytesMetric = "http_server_response_bytes"
)

// Metrics counts requests, server errors, time spent and bytes sent per
// route template and status.
func Metrics(client metrics.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := Record(w)

			next.ServeHTTP(rec, r)

			ctx := r.Context()
			attrs := []attribute.KeyValue{
				attribute.String(httpMethodKey, r.Method),
				attribute.String(httpRouteKey, routePattern(r)),
				attribute.String(httpStatusCodeKey, strconv.Itoa(rec.Status())),
			}

			client.Inc(ctx, requestsMetric, 1, attrs...)
			client.Inc(ctx, durationMetric, time.Since(start).Seconds(), attrs...)
			client.Inc(ctx, responseBytesMetric, rec.Size(), attrs...)

			if rec.Status() >= http.StatusInternalServerError {
				client.Inc(ctx, serverErrorsMetric, 1, attrs...)
			}
		})
	}
}

// routePattern labels by chi route template so table and row ids do not
// explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	return "unmatched"
}
