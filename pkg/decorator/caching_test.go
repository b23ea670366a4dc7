package decorator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/stretchr/testify/require"
)

type (
	describeQuery struct {
		TableID int64
	}

	columns []string

	fakeCache struct {
		mu     sync.Mutex
		data   map[int64]columns
		sets   int
		getErr error
		setErr error
	}

	fakeQueryHandler struct {
		mu     sync.Mutex
		calls  int
		result columns
		err    error
	}
)

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[int64]columns)}
}

func (c *fakeCache) Get(_ context.Context, q describeQuery) (columns, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, false, c.getErr
	}

	v, ok := c.data[q.TableID]

	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, q describeQuery, result columns, _ time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sets++

	if c.setErr != nil {
		return c.setErr
	}

	c.data[q.TableID] = result

	return nil
}

func (c *fakeCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sets
}

func (h *fakeQueryHandler) Execute(context.Context, describeQuery) (columns, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls++

	return h.result, h.err
}

func (m *recordingMetrics) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.keys...)
}

func TestQueryCachingDecorator(t *testing.T) {
	t.Parallel()

	fresh := columns{"id", "name"}
	enabled := decorator.CacheConfig{Name: "schema", Enabled: true, TTL: time.Minute}

	cases := []struct {
		name          string
		config        decorator.CacheConfig
		nilCache      bool
		seed          columns
		getErr        error
		setErr        error
		handlerErr    error
		expected      columns
		expectErr     bool
		expectCalls   int
		expectOutcome []string
		expectWritten bool
	}{
		{
			name:          "hit skips the handler",
			config:        enabled,
			seed:          columns{"cached"},
			expected:      columns{"cached"},
			expectOutcome: []string{"cache.schema.hit"},
		},
		{
			name:          "miss runs the handler and writes back",
			config:        enabled,
			expected:      fresh,
			expectCalls:   1,
			expectOutcome: []string{"cache.schema.miss"},
			expectWritten: true,
		},
		{
			name:          "disabled bypasses the cache",
			config:        decorator.CacheConfig{Name: "schema"},
			seed:          columns{"cached"},
			expected:      fresh,
			expectCalls:   1,
			expectOutcome: []string{"cache.schema.bypass"},
		},
		{
			name:          "nil cache bypasses",
			config:        enabled,
			nilCache:      true,
			expected:      fresh,
			expectCalls:   1,
			expectOutcome: []string{"cache.schema.bypass"},
		},
		{
			name:          "read errors fall through to the handler",
			config:        enabled,
			getErr:        errors.New("keydb down"),
			expected:      fresh,
			expectCalls:   1,
			expectOutcome: []string{"cache.schema.error"},
			expectWritten: true,
		},
		{
			name:          "write errors are counted",
			config:        enabled,
			setErr:        errors.New("OOM command not allowed"),
			expected:      fresh,
			expectCalls:   1,
			expectOutcome: []string{"cache.schema.miss", "cache.schema.write_error"},
			expectWritten: true,
		},
		{
			name:          "handler errors are not cached",
			config:        enabled,
			handlerErr:    errors.New("table not found"),
			expectErr:     true,
			expectCalls:   1,
			expectOutcome: []string{"cache.schema.miss"},
		},
		{
			name:          "name defaults to the query type",
			config:        decorator.CacheConfig{},
			expected:      fresh,
			expectCalls:   1,
			expectOutcome: []string{"cache.describeQuery.bypass"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cache := newFakeCache()
			cache.getErr = tc.getErr
			cache.setErr = tc.setErr

			if tc.seed != nil {
				cache.data[1] = tc.seed
			}

			handler := &fakeQueryHandler{result: fresh, err: tc.handlerErr}
			recorder := &recordingMetrics{}

			var c decorator.Cache[describeQuery, columns] = cache
			if tc.nilCache {
				c = nil
			}

			decorated := decorator.NewQueryCachingDecorator[describeQuery, columns](handler, c, tc.config, recorder)

			ctx, cancel := context.WithCancel(context.Background())
			result, err := decorated.Execute(ctx, describeQuery{TableID: 1})
			cancel()

			if tc.expectErr {
				require.Error(t, err)
				require.Nil(t, result)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.expected, result)
			}

			require.Equal(t, tc.expectCalls, handler.calls)

			if tc.expectWritten {
				require.Eventually(t, func() bool { return cache.setCount() == 1 }, time.Second, 5*time.Millisecond,
					"write-back must survive the caller's context being cancelled")
			} else {
				time.Sleep(20 * time.Millisecond)
				require.Zero(t, cache.setCount())
			}

			require.Eventually(t, func() bool {
				return len(recorder.snapshot()) == len(tc.expectOutcome)
			}, time.Second, 5*time.Millisecond)
			require.Equal(t, tc.expectOutcome, recorder.snapshot())
		})
	}
}
