package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/throttled/throttled/v2"
)

const (
	RateLimitLimitHeader     = "RateLimit-Limit"
	RateLimitRemainingHeader = "RateLimit-Remaining"
	RateLimitResetHeader     = "RateLimit-Reset"
	RetryAfterHeader         = "Retry-After"
)

// RateLimit enforces cfg's quota per identified user, or per client IP on
// routes Identity does not guard. Store failures let requests through when
// cfg.GracefulDegraded is set and answer 503 otherwise.
func RateLimit(cfg config.RateLimiting, store throttled.GCRAStoreCtx, log logger.Logger) (func(http.Handler) http.Handler, error) {
	limiter, err := throttled.NewGCRARateLimiterCtx(store, throttled.RateQuota{
		MaxRate:  throttled.PerSec(int(cfg.RequestsPerSecond)),
		MaxBurst: int(cfg.BurstSize),
	})
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited, result, err := limiter.RateLimitCtx(r.Context(), rateLimitKey(r), 1)
			if err != nil {
				reqLog := log.WithContext(r.Context())
				reqLog.Warn().Err(err).Msg("rate limiter store failed")

				if cfg.GracefulDegraded {
					next.ServeHTTP(w, r)

					return
				}

				writeMiddlewareError(w, http.StatusServiceUnavailable, "RATE_LIMITER_UNAVAILABLE",
					"rate limiting is temporarily unavailable")

				return
			}

			h := w.Header()
			h.Set(RateLimitLimitHeader, strconv.Itoa(result.Limit))
			h.Set(RateLimitRemainingHeader, strconv.Itoa(result.Remaining))
			h.Set(RateLimitResetHeader, strconv.Itoa(int(result.ResetAfter.Round(time.Second).Seconds())))

			if limited {
				retryAfter := max(1, int(result.RetryAfter.Round(time.Second).Seconds()))
				h.Set(RetryAfterHeader, strconv.Itoa(retryAfter))

				writeMiddlewareError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
					"too many requests, retry later")

				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func rateLimitKey(r *http.Request) string {
	if actor, ok := GetActor(r.Context()); ok {
		return "user:" + strconv.FormatInt(actor.UserID, 10)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return "ip:" + host
}
