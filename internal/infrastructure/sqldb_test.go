package infrastructure_test

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := infrastructure.MySQLDSN(model.DatasourceConfig{
		Host:     "db",
		Port:     3307,
		Database: "shop",
		User:     "root",
		Password: "secret",
		Params:   url.Values{"charset": {"utf8mb4"}},
	}, 5*time.Second)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)

	require.Equal(t, "tcp", parsed.Net)
	require.Equal(t, "db:3307", parsed.Addr)
	require.Equal(t, "shop", parsed.DBName)
	require.Equal(t, "root", parsed.User)
	require.Equal(t, "secret", parsed.Passwd)
	require.True(t, parsed.ParseTime)
	require.Equal(t, time.UTC, parsed.Loc)
	require.Equal(t, 5*time.Second, parsed.Timeout)
	require.Equal(t, "utf8mb4", parsed.Params["charset"])
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	require.Equal(t, ":memory:", infrastructure.SQLiteDSN(":memory:"))
	require.Contains(t, infrastructure.SQLiteDSN("app.db"), "busy_timeout(5000)")
}

func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	_, err := infrastructure.OpenSQLite(ctx, path, true)
	require.ErrorIs(t, err, infrastructure.ErrDatabaseFileMissing)

	db, err := infrastructure.OpenSQLite(ctx, path, false)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = infrastructure.OpenSQLite(ctx, path, true)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpenMetadataDB(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db, closeFn, err := infrastructure.OpenMetadataDB(ctx, model.DatasourceConfig{
		Type: model.DatasourceSQLite,
		Path: filepath.Join(t.TempDir(), "meta.db"),
	}, config.Pool{})
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, closeFn())

	_, _, err = infrastructure.OpenMetadataDB(ctx, model.DatasourceConfig{Type: "oracle"}, config.Pool{})
	require.ErrorIs(t, err, model.ErrUnknownDatasource)
}
