package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure/postgres"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	sqliteDriver = "sqlite"
	mysqlDriver  = "mysql"

	sqliteMemory = ":memory:"
)

var ErrDatabaseFileMissing = errors.New("database file does not exist")

// SQLiteDSN renders a modernc.org/sqlite DSN with a busy timeout so
// concurrent writers wait instead of failing with SQLITE_BUSY.
func SQLiteDSN(path string) string {
	if path == sqliteMemory {
		return path
	}

	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
}

// OpenSQLite opens a single connection handle on path. When mustExist is set
// a missing file is an error instead of being created.
func OpenSQLite(ctx context.Context, path string, mustExist bool) (*sql.DB, error) {
	if mustExist && path != sqliteMemory {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseFileMissing, path)
		}
	}

	db, err := sql.Open(sqliteDriver, SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)

	return pingOrClose(ctx, db)
}

// MySQLDSN renders a go-sql-driver DSN. Times are parsed into time.Time in
// UTC.
func MySQLDSN(cfg model.DatasourceConfig, connectTimeout time.Duration) string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10))
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = connectTimeout

	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for key := range cfg.Params {
			mc.Params[key] = cfg.Params.Get(key)
		}
	}

	return mc.FormatDSN()
}

func OpenMySQL(ctx context.Context, cfg model.DatasourceConfig, poolCfg config.Pool) (*sql.DB, error) {
	db, err := sql.Open(mysqlDriver, MySQLDSN(cfg, poolCfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening mysql database: %w", err)
	}

	applyPool(db, poolCfg)

	return pingOrClose(ctx, db)
}

// OpenMetadataDB opens the database/sql handle backing the metadata
// repositories. PostgreSQL goes through the pgx pool and the stdlib adapter.
// The returned close func releases everything that was opened.
func OpenMetadataDB(ctx context.Context, cfg model.DatasourceConfig, poolCfg config.Pool) (*sql.DB, func() error, error) {
	switch cfg.Type {
	case model.DatasourceSQLite:
		db, err := OpenSQLite(ctx, cfg.Path, false)
		if err != nil {
			return nil, nil, err
		}

		return db, db.Close, nil

	case model.DatasourceMySQL:
		db, err := OpenMySQL(ctx, cfg, poolCfg)
		if err != nil {
			return nil, nil, err
		}

		return db, db.Close, nil

	case model.DatasourcePostgreSQL:
		pool, err := postgres.NewPool(ctx, cfg, poolCfg)
		if err != nil {
			return nil, nil, err
		}

		db := stdlib.OpenDBFromPool(pool)

		return db, func() error {
			err := db.Close()
			pool.Close()

			return err
		}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", model.ErrUnknownDatasource, cfg.Type)
	}
}

func applyPool(db *sql.DB, poolCfg config.Pool) {
	if poolCfg.MaxConnections > 0 {
		db.SetMaxOpenConns(poolCfg.MaxConnections)
	}

	if poolCfg.MinConnections > 0 {
		db.SetMaxIdleConns(poolCfg.MinConnections)
	}

	if poolCfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(poolCfg.MaxConnLifetime)
	}

	if poolCfg.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(poolCfg.MaxConnIdleTime)
	}
}

func pingOrClose(ctx context.Context, db *sql.DB) (*sql.DB, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}
