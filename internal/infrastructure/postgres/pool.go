package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnString renders a pgx connection URL for cfg.
func ConnString(cfg model.DatasourceConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10)),
		Path:   "/" + cfg.Database,
	}

	query := url.Values{}
	for key, values := range cfg.Params {
		for _, v := range values {
			query.Add(key, v)
		}
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

func NewPool(ctx context.Context, cfg model.DatasourceConfig, poolCfg config.Pool) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	if poolCfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(poolCfg.MaxConnections)
	}

	if poolCfg.MinConnections > 0 {
		poolConfig.MinConns = int32(poolCfg.MinConnections)
	}

	if poolCfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = poolCfg.MaxConnLifetime
	}

	if poolCfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}

	if poolCfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = poolCfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
