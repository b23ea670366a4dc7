package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	errRefused  = errors.New("dial tcp: connection refused")
	errRejected = errors.New("syntax error at or near \"FORM\"")
)

func tripAfter(threshold uint) Config {
	return Config{
		Name:             "datasource",
		Enabled:          true,
		MaxRequests:      1,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: threshold,
	}
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func succeed() (string, error) { return "conn", nil }

func TestDisabledBreakerPassesThrough(t *testing.T) {
	t.Parallel()

	cb := New[string](Config{Name: "off"})
	require.Nil(t, cb)
	require.Equal(t, "closed", cb.State())

	for range 10 {
		_, err := Execute(cb, fail(errRefused))
		require.ErrorIs(t, err, errRefused)
	}

	group := NewGroup[string](Config{})
	require.Nil(t, group.Get("postgresql"))

	result, err := group.Execute("postgresql", succeed)
	require.NoError(t, err)
	require.Equal(t, "conn", result)
}

func TestBreakerLifecycle(t *testing.T) {
	t.Parallel()

	cb := New[string](tripAfter(2))
	require.Equal(t, "datasource", cb.Name())

	for range 2 {
		_, err := Execute(cb, fail(errRefused))
		require.ErrorIs(t, err, errRefused)
	}

	require.Equal(t, "open", cb.State())

	calls := 0
	_, err := Execute(cb, func() (string, error) {
		calls++

		return "conn", nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.True(t, Rejected(err))
	require.Zero(t, calls, "open breaker does not reach the backend")

	require.Eventually(t, func() bool { return cb.State() == "half-open" }, time.Second, 5*time.Millisecond)

	result, err := Execute(cb, succeed)
	require.NoError(t, err)
	require.Equal(t, "conn", result)
	require.Equal(t, "closed", cb.State())
}

func TestHalfOpenProbeQuota(t *testing.T) {
	t.Parallel()

	cb := New[string](tripAfter(1))

	_, _ = Execute(cb, fail(errRefused))
	require.Eventually(t, func() bool { return cb.State() == "half-open" }, time.Second, 5*time.Millisecond)

	entered := make(chan struct{})
	probe := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = Execute(cb, func() (string, error) {
			close(entered)
			<-probe

			return "conn", nil
		})
	}()

	<-entered

	_, err := Execute(cb, succeed)
	require.ErrorIs(t, err, ErrTooManyRequests)

	close(probe)
	<-done

	require.Equal(t, "closed", cb.State())
}

func TestIsSuccessfulErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	cfg := tripAfter(1)
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errRejected) }

	cb := New[string](cfg)

	for range 5 {
		_, err := Execute(cb, fail(errRejected))
		require.ErrorIs(t, err, errRejected)
	}

	require.Equal(t, "closed", cb.State())

	_, _ = Execute(cb, fail(errRefused))
	require.Equal(t, "open", cb.State())
}

func TestGroupIsolatesKeys(t *testing.T) {
	t.Parallel()

	var (
		mu          sync.Mutex
		transitions []string
	)

	cfg := tripAfter(1)
	cfg.OnStateChange = func(name, from, to string) {
		mu.Lock()
		defer mu.Unlock()

		transitions = append(transitions, name+" "+from+"->"+to)
	}

	group := NewGroup[string](cfg)

	_, err := group.Execute("mysql", fail(errRefused))
	require.ErrorIs(t, err, errRefused)

	_, err = group.Execute("mysql", succeed)
	require.ErrorIs(t, err, ErrCircuitOpen)

	result, err := group.Execute("postgresql", succeed)
	require.NoError(t, err, "a failing mysql server does not trip postgresql")
	require.Equal(t, "conn", result)

	require.Same(t, group.Get("mysql"), group.Get("mysql"))
	require.Equal(t, "datasource:mysql", group.Get("mysql").Name())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"datasource:mysql closed->open"}, transitions)
}

func TestRejected(t *testing.T) {
	t.Parallel()

	require.True(t, Rejected(ErrCircuitOpen))
	require.True(t, Rejected(ErrTooManyRequests))
	require.False(t, Rejected(errRefused))
	require.False(t, Rejected(nil))
}
