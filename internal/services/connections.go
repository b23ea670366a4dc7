package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/circuitbreaker"
	"github.com/architeacher/nocoflo/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
)

type (
	// ConnectionManager opens datasource connections and keeps the most
	// recently used ones open, keyed by registered database id. An evicted
	// connection is closed once the last request holding it releases it.
	ConnectionManager struct {
		registry ports.DatasourceRegistry
		cache    *lru.Cache[int64, *cachedConn]
		breakers *circuitbreaker.Group[ports.Connection]
		timeout  time.Duration
		logger   logger.Logger

		// mu guards the cache and every entry's refs and evicted fields.
		// Cache calls that may evict run with it held.
		mu sync.Mutex
		// connecting serialises opens so two requests for a cold database
		// do not both dial it.
		connecting sync.Mutex
	}

	cachedConn struct {
		dbID    int64
		conn    ports.Connection
		refs    int
		evicted bool
	}
)

func NewConnectionManager(
	registry ports.DatasourceRegistry,
	dsCfg config.Datasources,
	cbCfg config.CircuitBreakerConfig,
	log logger.Logger,
) (*ConnectionManager, error) {
	m := &ConnectionManager{
		registry: registry,
		timeout:  dsCfg.ConnectTimeout,
		logger:   log,
		breakers: circuitbreaker.NewGroup[ports.Connection](circuitbreaker.Config{
			Name:             "datasource",
			Enabled:          cbCfg.Enabled,
			MaxRequests:      cbCfg.MaxRequests,
			Interval:         cbCfg.Interval,
			Timeout:          cbCfg.Timeout,
			FailureThreshold: cbCfg.FailureThreshold,
			IsSuccessful:     isRoutine,
			OnStateChange: func(name, from, to string) {
				log.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("circuit breaker state changed")
			},
		}),
	}

	if dsCfg.ConnCacheSize > 0 {
		cache, err := lru.NewWithEvict[int64, *cachedConn](dsCfg.ConnCacheSize, m.onEvict)
		if err != nil {
			return nil, fmt.Errorf("creating connection cache: %w", err)
		}

		m.cache = cache
	}

	return m, nil
}

// Acquire returns the plugin and an open connection for a registered
// database. The release func must be called exactly once when done. The
// connection stays open until then even if it is evicted meanwhile.
func (m *ConnectionManager) Acquire(ctx context.Context, dbID int64, cfg model.DatasourceConfig) (ports.Datasource, ports.Connection, func(), error) {
	plugin, err := m.registry.Get(cfg.Type)
	if err != nil {
		return nil, nil, nil, err
	}

	if m.cache == nil {
		conn, err := m.connect(ctx, plugin, cfg)
		if err != nil {
			return nil, nil, nil, err
		}

		return plugin, conn, func() { m.closeQuietly(dbID, conn) }, nil
	}

	if entry := m.retain(dbID); entry != nil {
		return plugin, entry.conn, m.releaser(entry), nil
	}

	m.connecting.Lock()
	defer m.connecting.Unlock()

	if entry := m.retain(dbID); entry != nil {
		return plugin, entry.conn, m.releaser(entry), nil
	}

	conn, err := m.connect(ctx, plugin, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	entry := &cachedConn{dbID: dbID, conn: conn, refs: 1}

	m.mu.Lock()
	m.cache.Add(dbID, entry)
	m.mu.Unlock()

	return plugin, conn, m.releaser(entry), nil
}

// retain returns the cached entry of dbID with one more holder, or nil.
func (m *ConnectionManager) retain(dbID int64) *cachedConn {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache.Get(dbID)
	if !ok {
		return nil
	}

	entry.refs++

	return entry
}

func (m *ConnectionManager) releaser(entry *cachedConn) func() {
	var once sync.Once

	return func() {
		once.Do(func() {
			m.mu.Lock()
			entry.refs--
			closeNow := entry.evicted && entry.refs == 0
			m.mu.Unlock()

			if closeNow {
				m.closeQuietly(entry.dbID, entry.conn)
			}
		})
	}
}

// onEvict runs inside cache calls made with mu held.
func (m *ConnectionManager) onEvict(dbID int64, entry *cachedConn) {
	entry.evicted = true

	if entry.refs == 0 {
		m.closeQuietly(dbID, entry.conn)
	}
}

// Test checks that cfg is reachable without keeping the connection.
func (m *ConnectionManager) Test(ctx context.Context, cfg model.DatasourceConfig) error {
	plugin, err := m.registry.Get(cfg.Type)
	if err != nil {
		return err
	}

	_, err = m.breakers.Execute(string(cfg.Type), func() (ports.Connection, error) {
		ctx, cancel := m.withTimeout(ctx)
		defer cancel()

		return nil, plugin.TestConnection(ctx, cfg)
	})

	return m.breakerError(err)
}

// Forget drops the cached connection of a database, closing it once no
// request holds it.
func (m *ConnectionManager) Forget(dbID int64) {
	if m.cache == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Remove(dbID)
}

// Close drops every cached connection. Connections still held close on
// release.
func (m *ConnectionManager) Close() {
	if m.cache == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Purge()
}

func (m *ConnectionManager) connect(ctx context.Context, plugin ports.Datasource, cfg model.DatasourceConfig) (ports.Connection, error) {
	conn, err := m.breakers.Execute(string(cfg.Type), func() (ports.Connection, error) {
		ctx, cancel := m.withTimeout(ctx)
		defer cancel()

		return plugin.Connect(ctx, cfg)
	})
	if err != nil {
		return nil, m.breakerError(err)
	}

	m.logger.Debug().Str("datasource", cfg.Redacted()).Msg("datasource connected")

	return conn, nil
}

func (m *ConnectionManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, m.timeout)
}

func (m *ConnectionManager) breakerError(err error) error {
	if circuitbreaker.Rejected(err) {
		return fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	return err
}

func (m *ConnectionManager) closeQuietly(dbID int64, conn ports.Connection) {
	if err := conn.Close(); err != nil {
		m.logger.Warn().Err(err).Int64("db_id", dbID).Msg("closing connection")
	}
}

// isRoutine reports errors that say nothing about backend health.
func isRoutine(err error) bool {
	if err == nil {
		return true
	}

	var expected interface{ Expected() bool }

	return errors.As(err, &expected) && expected.Expected()
}
