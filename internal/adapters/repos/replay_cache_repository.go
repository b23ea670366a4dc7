package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/idempotency"
	"github.com/redis/go-redis/v9"
)

// ReplayCacheRepository keeps idempotent replies in KeyDB. The in-flight
// marker reuses the row lock claim scripts under a separate key.
type ReplayCacheRepository struct {
	client *infrastructure.KeydbClient
}

func NewReplayCacheRepository(client *infrastructure.KeydbClient) *ReplayCacheRepository {
	return &ReplayCacheRepository{client: client}
}

func (r *ReplayCacheRepository) Get(ctx context.Context, key string) (*ports.StoredReply, error) {
	data, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting stored reply: %w", err)
	}

	var reply ports.StoredReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("unmarshalling stored reply: %w", err)
	}

	return &reply, nil
}

func (r *ReplayCacheRepository) Set(ctx context.Context, key string, reply *ports.StoredReply, ttl time.Duration) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshalling reply: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("storing reply: %w", err)
	}

	return nil
}

func (r *ReplayCacheRepository) Claim(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	ok, err := r.client.AcquireOrRefresh(ctx, idempotency.ClaimKey(key), holder, time.Now().UTC(), ttl)
	if err != nil {
		return false, fmt.Errorf("claiming replay key: %w", err)
	}

	return ok, nil
}

func (r *ReplayCacheRepository) Release(ctx context.Context, key, holder string) error {
	if _, err := r.client.CompareAndDelete(ctx, idempotency.ClaimKey(key), holder); err != nil {
		return fmt.Errorf("releasing replay key: %w", err)
	}

	return nil
}
