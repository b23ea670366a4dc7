package decorator

import (
	"context"
	"time"

	"github.com/architeacher/nocoflo/pkg/metrics"
)

const defaultSetTimeout = 2 * time.Second

type (
	// CacheConfig configures a read-through cache in front of a query
	// handler. Name labels the outcome counters (cache.<name>.hit and so on).
	CacheConfig struct {
		Name       string
		Enabled    bool
		TTL        time.Duration
		SetTimeout time.Duration
	}

	// Cache stores query results keyed by the query value.
	Cache[Q Query, R Result] interface {
		Get(ctx context.Context, query Q) (R, bool, error)
		Set(ctx context.Context, query Q, result R, ttl time.Duration) error
	}

	queryCachingDecorator[Q Query, R Result] struct {
		base    QueryHandler[Q, R]
		cache   Cache[Q, R]
		config  CacheConfig
		metrics metrics.Client
	}
)

// NewQueryCachingDecorator serves hits from cache and writes misses back in
// the background. A failing cache degrades to the base handler and never
// fails the query; errors from the base handler are not cached.
func NewQueryCachingDecorator[Q Query, R Result](
	base QueryHandler[Q, R],
	cache Cache[Q, R],
	config CacheConfig,
	metricsClient metrics.Client,
) QueryHandler[Q, R] {
	if config.Name == "" {
		config.Name = generateActionName(*new(Q))
	}

	if config.SetTimeout <= 0 {
		config.SetTimeout = defaultSetTimeout
	}

	return queryCachingDecorator[Q, R]{
		base:    base,
		cache:   cache,
		config:  config,
		metrics: metricsClient,
	}
}

func (d queryCachingDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	if !d.config.Enabled || d.cache == nil {
		d.count(ctx, "bypass")

		return d.base.Execute(ctx, query)
	}

	cached, hit, err := d.cache.Get(ctx, query)

	switch {
	case err != nil:
		d.count(ctx, "error")
	case hit:
		d.count(ctx, "hit")

		return cached, nil
	default:
		d.count(ctx, "miss")
	}

	result, err := d.base.Execute(ctx, query)
	if err != nil {
		var zero R

		return zero, err
	}

	go func() {
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.SetTimeout)
		defer cancel()

		if err := d.cache.Set(setCtx, query, result, d.config.TTL); err != nil {
			d.count(setCtx, "write_error")
		}
	}()

	return result, nil
}

func (d queryCachingDecorator[Q, R]) count(ctx context.Context, outcome string) {
	if d.metrics == nil {
		return
	}

	d.metrics.Inc(ctx, "cache."+d.config.Name+"."+outcome, 1)
}
