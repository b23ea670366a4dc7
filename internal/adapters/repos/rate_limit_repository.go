package repos

import (
	"context"
	"time"

	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/throttled/throttled/v2"
)

const rateLimitKeyPrefix = "ratelimit:"

var _ throttled.GCRAStoreCtx = (*RateLimitRepository)(nil)

// RateLimitRepository keeps GCRA theoretical arrival times in KeyDB so every
// nocoflo instance enforces the same quota.
type RateLimitRepository struct {
	client *infrastructure.KeydbClient
}

func NewRateLimitRepository(client *infrastructure.KeydbClient) *RateLimitRepository {
	return &RateLimitRepository{client: client}
}

func (r *RateLimitRepository) GetWithTime(ctx context.Context, key string) (int64, time.Time, error) {
	return r.client.GetInt64(ctx, rateLimitKeyPrefix+key)
}

func (r *RateLimitRepository) SetIfNotExistsWithTTL(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return r.client.SetInt64NX(ctx, rateLimitKeyPrefix+key, value, ttl)
}

func (r *RateLimitRepository) CompareAndSwapWithTTL(ctx context.Context, key string, old, next int64, ttl time.Duration) (bool, error) {
	return r.client.CompareAndSwapInt64(ctx, rateLimitKeyPrefix+key, old, next, ttl)
}
