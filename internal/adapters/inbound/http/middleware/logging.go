package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/rs/zerolog"
)

const actorSlotKey contextKey = "actor_slot"

var probePaths = []string{"/health", "/liveness", "/metrics"}

type (
	AccessLogOptions struct {
		// LogProbes keeps health checks and metric scrapes in the log.
		LogProbes    bool
		IncludeQuery bool
	}

	// actorSlot is filled by Identity further down the chain so the access
	// line can name the caller.
	actorSlot struct {
		userID int64
	}
)

// AccessLog writes one line per request, at warn for client errors and at
// error for server errors.
func AccessLog(log logger.Logger, opts AccessLogOptions) func(http.Handler) http.Handler {
	httpLog := log.Component("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.LogProbes && slices.Contains(probePaths, strings.TrimSuffix(r.URL.Path, "/")) {
				next.ServeHTTP(w, r)

				return
			}

			start := time.Now()
			rec := Record(w)
			slot := &actorSlot{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), actorSlotKey, slot)))

			ctx := r.Context()
			if slot.userID > 0 {
				ctx = logger.WithUserID(ctx, slot.userID)
			}

			reqLog := httpLog.WithContext(ctx)
			event := reqLog.WithLevel(accessLevel(rec.Status())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.Status()).
				Int64("bytes", rec.Size()).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent())

			if opts.IncludeQuery && r.URL.RawQuery != "" {
				event = event.Str("query", r.URL.RawQuery)
			}

			event.Msg("request served")
		})
	}
}

func accessLevel(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
