package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	appLogger "github.com/architeacher/nocoflo/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var (
	// acquireScript claims the hash KEYS[1] for holder ARGV[1] at ARGV[2]
	// when it is free or already held by ARGV[1]. ARGV[3] is the expiry in
	// milliseconds, 0 for none.
	acquireScript = redis.NewScript(`
		local current = redis.call("HGET", KEYS[1], "holder")
		if current ~= false and current ~= ARGV[1] then
			return 0
		end
		redis.call("HSET", KEYS[1], "holder", ARGV[1], "since", ARGV[2])
		if tonumber(ARGV[3]) > 0 then
			redis.call("PEXPIRE", KEYS[1], ARGV[3])
		else
			redis.call("PERSIST", KEYS[1])
		end
		return 1
	`)

	// swapScript replaces the integer at KEYS[1] with ARGV[2] only while it
	// still equals ARGV[1], resetting the expiry to ARGV[3] milliseconds.
	swapScript = redis.NewScript(`
		local current = redis.call("GET", KEYS[1])
		if current == false or tonumber(current) ~= tonumber(ARGV[1]) then
			return 0
		end
		redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
		return 1
	`)

	// compareAndDeleteScript deletes KEYS[1] only while ARGV[1] holds it.
	compareAndDeleteScript = redis.NewScript(`
		if redis.call("HGET", KEYS[1], "holder") == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
)

// Claim is the content of a key taken with AcquireOrRefresh.
type Claim struct {
	Holder string
	Since  time.Time
}

type KeydbClient struct {
	client *redis.Client
	logger appLogger.Logger
}

// NewKeyDBClient connects lazily; the first command dials.
func NewKeyDBClient(cfg config.Cache, logger appLogger.Logger) *KeydbClient {
	return NewKeyDBClientFrom(redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           int(cfg.DB),
		PoolSize:     int(cfg.PoolSize),
		MinIdleConns: int(cfg.MinIdleConns),
		MaxRetries:   int(cfg.MaxRetries),
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}), logger.Component("keydb"))
}

// NewKeyDBClientFrom wraps an existing client, which tests point at
// miniredis.
func NewKeyDBClientFrom(client *redis.Client, logger appLogger.Logger) *KeydbClient {
	return &KeydbClient{client: client, logger: logger}
}

func (c *KeydbClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *KeydbClient) Close() error {
	return c.client.Close()
}

// Get returns redis.Nil when the key is absent.
func (c *KeydbClient) Get(ctx context.Context, key string) ([]byte, error) {
	defer c.trace("get", key, time.Now())

	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Error().Err(err).Str("key", key).Msg("keydb get failed")
	}

	return value, err
}

func (c *KeydbClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	defer c.trace("set", key, time.Now())

	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *KeydbClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	defer c.trace("del", keys[0], time.Now())

	return c.client.Del(ctx, keys...).Err()
}

func (c *KeydbClient) trace(op, key string, start time.Time) {
	c.logger.Debug().
		Str("op", op).
		Str("key", key).
		Dur("took", time.Since(start)).
		Msg("keydb call")
}

// GetInt64 reports -1 for an absent key. The returned time is the moment of
// the read.
func (c *KeydbClient) GetInt64(ctx context.Context, key string) (int64, time.Time, error) {
	value, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return -1, time.Now(), nil
	}

	if err != nil {
		return 0, time.Time{}, fmt.Errorf("reading %s: %w", key, err)
	}

	return value, time.Now(), nil
}

func (c *KeydbClient) SetInt64NX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *KeydbClient) CompareAndSwapInt64(ctx context.Context, key string, old, next int64, ttl time.Duration) (bool, error) {
	swapped, err := swapScript.Run(ctx, c.client, []string{key}, old, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("swapping %s: %w", key, err)
	}

	return swapped == 1, nil
}

// AcquireOrRefresh claims key for holder in one round trip. A zero ttl
// stores the claim without expiry.
func (c *KeydbClient) AcquireOrRefresh(ctx context.Context, key, holder string, since time.Time, ttl time.Duration) (bool, error) {
	result, err := acquireScript.Run(ctx, c.client, []string{key}, holder, since.UnixNano(), ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("acquiring %s: %w", key, err)
	}

	return result == 1, nil
}

// GetClaim returns nil when key is not claimed.
func (c *KeydbClient) GetClaim(ctx context.Context, key string) (*Claim, error) {
	values, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	holder, ok := values["holder"]
	if !ok {
		return nil, nil
	}

	since, err := strconv.ParseInt(values["since"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("reading %s: invalid claim time: %w", key, err)
	}

	return &Claim{Holder: holder, Since: time.Unix(0, since).UTC()}, nil
}

// CompareAndDelete drops key only while it is held by holder.
func (c *KeydbClient) CompareAndDelete(ctx context.Context, key, holder string) (bool, error) {
	result, err := compareAndDeleteScript.Run(ctx, c.client, []string{key}, holder).Int64()
	if err != nil {
		return false, fmt.Errorf("releasing %s: %w", key, err)
	}

	return result == 1, nil
}

// TTL is negative for keys without expiry or that do not exist.
func (c *KeydbClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading ttl of %s: %w", key, err)
	}

	return ttl, nil
}

// Scan returns one page of keys matching pattern and the next cursor, 0
// once iteration is complete.
func (c *KeydbClient) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("scanning keys: %w", err)
	}

	return keys, nextCursor, nil
}
