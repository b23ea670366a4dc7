package circuitbreaker

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker wraps gobreaker to stop hammering a backend that keeps
// failing.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a circuit breaker, or returns nil when cfg disables it.
// A nil breaker is valid and passes every call through.
func New[T any](cfg Config) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		IsSuccessful: cfg.IsSuccessful,
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}

// State is "closed", "half-open" or "open". A nil breaker is always closed.
func (c *CircuitBreaker[T]) State() string {
	if c == nil {
		return gobreaker.StateClosed.String()
	}

	return c.cb.State().String()
}

// Execute runs fn through the breaker. It returns ErrCircuitOpen while the
// breaker is open and ErrTooManyRequests when the half-open probe quota is
// used up.
func Execute[T any](cb *CircuitBreaker[T], fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}

	result, err := cb.cb.Execute(fn)
	if err != nil {
		var zero T

		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			return zero, ErrCircuitOpen
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, ErrTooManyRequests
		}

		return result, err
	}

	return result, nil
}

// Group hands out one breaker per key, so one unreachable backend does not
// trip calls to the others.
type Group[T any] struct {
	cfg      Config
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker[T]
}

func NewGroup[T any](cfg Config) *Group[T] {
	return &Group[T]{
		cfg:      cfg,
		breakers: make(map[string]*CircuitBreaker[T]),
	}
}

// Get returns the breaker for key, creating it on first use.
func (g *Group[T]) Get(key string) *CircuitBreaker[T] {
	if !g.cfg.Enabled {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[key]; ok {
		return cb
	}

	cfg := g.cfg
	cfg.Name = key

	if g.cfg.Name != "" {
		cfg.Name = g.cfg.Name + ":" + key
	}

	cb := New[T](cfg)
	g.breakers[key] = cb

	return cb
}

func (g *Group[T]) Execute(key string, fn func() (T, error)) (T, error) {
	return Execute(g.Get(key), fn)
}
