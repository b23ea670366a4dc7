// Package logger is the zerolog setup shared by every component. Request
// scoped identifiers travel in the context and are attached by WithContext.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const JSONLoggingFormat = "json"

type (
	requestIDKey struct{}
	userIDKey    struct{}

	Logger struct {
		zerolog.Logger
	}
)

func New(level, format string) Logger {
	return NewWithWriter(level, format, os.Stdout)
}

// NewWithWriter builds a logger at level writing JSON or, for any other
// format, human readable console lines. Unknown levels fall back to info.
func NewWithWriter(level, format string, w io.Writer) Logger {
	out := w
	if format != JSONLoggingFormat {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return Logger{
		Logger: zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger(),
	}
}

// ParseLevel accepts zerolog level names plus "warning".
func ParseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = zerolog.LevelWarnValue
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}

	return parsed
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)

	return id
}

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// Component returns a child logger tagged with the emitting component.
func (l Logger) Component(name string) Logger {
	return Logger{Logger: l.With().Str("component", name).Logger()}
}

// WithContext adds request_id, user_id and the active span ids found in ctx.
func (l Logger) WithContext(ctx context.Context) zerolog.Logger {
	fields := l.With()

	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		fields = fields.Str("request_id", id)
	}

	if id, ok := ctx.Value(userIDKey{}).(int64); ok && id > 0 {
		fields = fields.Int64("user_id", id)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = fields.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}

	return fields.Logger()
}
