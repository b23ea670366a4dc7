package decorator_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type (
	LockRowCommand struct {
		RowPK string
	}

	lockRowHandler struct {
		err error
	}

	recordingMetrics struct {
		mu   sync.Mutex
		keys []string
	}

	routineError struct{}
)

func (h lockRowHandler) Handle(_ context.Context, cmd LockRowCommand) (bool, error) {
	if h.err != nil {
		return false, h.err
	}

	return cmd.RowPK != "", nil
}

func (m *recordingMetrics) Inc(_ context.Context, key string, _ any, _ ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys = append(m.keys, key)
}

func (m *recordingMetrics) Handler() http.Handler { return http.NotFoundHandler() }

func (m *recordingMetrics) Shutdown(context.Context) error { return nil }

func (routineError) Error() string  { return "row is locked" }
func (routineError) Expected() bool { return true }

func TestApplyCommandDecorators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		handlerErr    error
		expectMetric  string
		expectStatus  codes.Code
		expectLogText string
		expectLevel   string
	}{
		{
			name:          "success",
			expectMetric:  "commands.lockrowcommand.success",
			expectStatus:  codes.Ok,
			expectLogText: "command executed",
			expectLevel:   `"level":"debug"`,
		},
		{
			name:          "unexpected failure",
			handlerErr:    errors.New("disk full"),
			expectMetric:  "commands.lockrowcommand.failure",
			expectStatus:  codes.Error,
			expectLogText: "command failed",
			expectLevel:   `"level":"error"`,
		},
		{
			name:          "routine failure",
			handlerErr:    routineError{},
			expectMetric:  "commands.lockrowcommand.failure",
			expectStatus:  codes.Error,
			expectLogText: "command rejected",
			expectLevel:   `"level":"info"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			mc := &recordingMetrics{}

			handler := decorator.ApplyCommandDecorators[LockRowCommand, bool](
				lockRowHandler{err: tc.handlerErr},
				logger.NewBufferedTestLogger(&buf),
				tp,
				mc,
			)

			_, err := handler.Handle(context.Background(), LockRowCommand{RowPK: "1"})
			require.ErrorIs(t, err, tc.handlerErr)

			require.Contains(t, mc.keys, "commands.lockrowcommand.duration_seconds")
			require.Contains(t, mc.keys, tc.expectMetric)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			require.Equal(t, "command.LockRowCommand", spans[0].Name())
			require.Equal(t, tc.expectStatus, spans[0].Status().Code)

			var outcome string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				if strings.Contains(line, tc.expectLogText) {
					outcome = line
				}
			}

			require.NotEmpty(t, outcome)
			require.Contains(t, outcome, tc.expectLevel)
			require.Contains(t, outcome, `"command":"LockRowCommand"`)
		})
	}
}

func TestApplyQueryDecorators_NilCollaborators(t *testing.T) {
	t.Parallel()

	handler := decorator.ApplyQueryDecorators[describeQuery, columns](
		&fakeQueryHandler{result: columns{"id"}},
		logger.NewTestLogger(),
		nil,
		nil,
	)

	result, err := handler.Execute(context.Background(), describeQuery{TableID: 1})
	require.NoError(t, err)
	require.Equal(t, columns{"id"}, result)
}
