package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/architeacher/nocoflo/internal/adapters/inbound/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const remoteTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

type TracerTestSuite struct {
	suite.Suite

	recorder *tracetest.SpanRecorder
	router   chi.Router
}

func TestTracerTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(TracerTestSuite))
}

func (s *TracerTestSuite) SetupTest() {
	s.recorder = tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder))

	s.router = chi.NewRouter()
	s.router.Use(middleware.Tracer(tp))
	s.router.Get("/v1/tables/{tableID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	s.router.Get("/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (s *TracerTestSuite) serve(path string, header http.Header) sdktrace.ReadOnlySpan {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	s.router.ServeHTTP(httptest.NewRecorder(), req)

	spans := s.recorder.Ended()
	s.Require().Len(spans, 1)

	return spans[0]
}

func (s *TracerTestSuite) TestContinuesRemoteTraceAndNamesByRoute() {
	span := s.serve("/v1/tables/42", http.Header{
		"Traceparent": {"00-" + remoteTraceID + "-00f067aa0ba902b7-01"},
	})

	s.Require().Equal("GET /v1/tables/{tableID}", span.Name())
	s.Require().Equal(otelTrace.SpanKindServer, span.SpanKind())
	s.Require().Equal(remoteTraceID, span.SpanContext().TraceID().String())
	s.Require().True(span.Parent().IsRemote())
	s.Require().Equal(codes.Error, span.Status().Code)
	s.Require().Contains(span.Attributes(), attribute.String("http.route", "/v1/tables/{tableID}"))
}

func (s *TracerTestSuite) TestStartsRootSpanWithoutTraceparent() {
	span := s.serve("/v1/health", nil)

	s.Require().Equal("GET /v1/health", span.Name())
	s.Require().False(span.Parent().IsValid())
	s.Require().NotEqual(codes.Error, span.Status().Code)
}
