package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/pkg/logger"
)

type contextKey string

const (
	UserIDHeader            = "X-User-Id"
	ActorKey     contextKey = "actor"
)

// ActorResolver looks up the role of a user id.
type ActorResolver func(ctx context.Context, userID int64) (model.Actor, error)

// Identity authenticates the caller from X-User-Id. Requests without a valid,
// known user id never reach the handler.
func Identity(resolve ActorResolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if raw == "" {
				writeUnauthorizedResponse(w, "missing "+UserIDHeader+" header")

				return
			}

			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				writeUnauthorizedResponse(w, "invalid "+UserIDHeader+" header")

				return
			}

			actor, err := resolve(r.Context(), userID)
			if err != nil {
				if errors.Is(err, model.ErrUserNotFound) {
					writeUnauthorizedResponse(w, "unknown user")

					return
				}

				reqLogger := log.WithContext(r.Context())
				reqLogger.Error().Err(err).Int64("user_id", userID).Msg("failed to resolve caller")

				writeMiddlewareError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")

				return
			}

			if slot, ok := r.Context().Value(actorSlotKey).(*actorSlot); ok {
				slot.userID = actor.UserID
			}

			ctx := context.WithValue(r.Context(), ActorKey, actor)
			ctx = logger.WithUserID(ctx, actor.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor returns the caller set by Identity.
func GetActor(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(model.Actor)

	return actor, ok
}

// WithActor is used by tests that bypass Identity.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func writeUnauthorizedResponse(w http.ResponseWriter, message string) {
	writeMiddlewareError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func writeMiddlewareError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	_ = json.NewEncoder(w).Encode(response)
}
