package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "nocoflo/http"

// Tracer continues an incoming W3C trace, or starts one, around each request.
// Routing happens inside the span, so it starts named after the method and is
// renamed to the matched route once the handler returns.
func Tracer(tracerProvider otelTrace.TracerProvider) func(http.Handler) http.Handler {
	instrument := otelhttp.NewMiddleware(tracerName,
		otelhttp.WithTracerProvider(tracerProvider),
		otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		)),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	)

	return func(next http.Handler) http.Handler {
		return instrument(nameByRoute(next))
	}
}

func nameByRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		route := routePattern(r)

		span := otelTrace.SpanFromContext(r.Context())
		span.SetName(r.Method + " " + route)
		span.SetAttributes(attribute.String(httpRouteKey, route))
	})
}
