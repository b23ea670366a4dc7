package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/idempotency"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/google/uuid"
)

// Idempotency replays the stored reply when a POST is retried with the same
// key. It must run after Identity so keys are scoped to the caller. Only 2xx
// replies are stored; a failed request may be retried with the same key.
func Idempotency(cache ports.ReplayCache, cfg config.Idempotency, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)

				return
			}

			key := r.Header.Get(cfg.HeaderName)
			if key == "" {
				next.ServeHTTP(w, r)

				return
			}

			if err := idempotency.Validate(key); err != nil {
				writeMiddlewareError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", err.Error())

				return
			}

			ctx := r.Context()
			actor, _ := GetActor(ctx)
			replayKey := idempotency.ReplayKey(actor.UserID, r.Method, r.URL.Path, key)

			degrade := func(err error, msg string) {
				log.Warn().Err(err).Str("idempotency_key", key).Msg(msg)

				if cfg.GracefulDegraded {
					next.ServeHTTP(w, r.WithContext(idempotency.WithKey(ctx, key)))

					return
				}

				writeMiddlewareError(w, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE",
					"idempotency service temporarily unavailable")
			}

			stored, err := cache.Get(ctx, replayKey)
			if err != nil {
				degrade(err, "replay lookup failed")

				return
			}

			if stored != nil {
				writeStoredReply(w, cfg.ReplayedHeader, stored)

				return
			}

			holder := GetRequestID(ctx)
			if holder == "" {
				holder = uuid.NewString()
			}

			claimed, err := cache.Claim(ctx, replayKey, holder, cfg.LockTTL)
			if err != nil {
				degrade(err, "replay claim failed")

				return
			}

			if !claimed {
				writeMiddlewareError(w, http.StatusConflict, "REQUEST_IN_PROGRESS",
					"a request with this idempotency key is already being processed")

				return
			}

			defer func() {
				if err := cache.Release(ctx, replayKey, holder); err != nil {
					log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to release replay claim")
				}
			}()

			recorder := newReplayRecorder(w)
			next.ServeHTTP(recorder, r.WithContext(idempotency.WithKey(ctx, key)))

			status := recorder.Status()
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				return
			}

			reply := &ports.StoredReply{
				StatusCode: status,
				Headers:    recorder.capturedHeaders(),
				Body:       recorder.body.Bytes(),
				CreatedAt:  time.Now().UTC(),
			}

			if err := cache.Set(ctx, replayKey, reply, cfg.CacheTTL); err != nil {
				log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to store reply")
			}
		})
	}
}

func writeStoredReply(w http.ResponseWriter, replayedHeader string, reply *ports.StoredReply) {
	for name, value := range reply.Headers {
		w.Header().Set(name, value)
	}

	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(reply.StatusCode)
	_, _ = w.Write(reply.Body)
}

// replayRecorder copies the body aside while it is written through.
type replayRecorder struct {
	*ResponseRecorder
	body bytes.Buffer
}

func newReplayRecorder(w http.ResponseWriter) *replayRecorder {
	return &replayRecorder{ResponseRecorder: &ResponseRecorder{ResponseWriter: w}}
}

func (r *replayRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)

	return r.ResponseRecorder.Write(b)
}

func (r *replayRecorder) capturedHeaders() map[string]string {
	headers := make(map[string]string)

	for name, values := range r.Header() {
		if len(values) > 0 && name != RequestIDHeader {
			headers[name] = values[0]
		}
	}

	return headers
}
