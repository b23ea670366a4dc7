//go:build integration

// Package itest runs the datasource plugins and the metadata store against
// real PostgreSQL and MySQL servers started with testcontainers.
package itest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:18-alpine"
	mysqlImage    = "mysql:8.4"
	testDatabase  = "nocoflo_test"
	testUsername  = "test"
	testPassword  = "test"
)

var testPool = config.Pool{
	MaxConnections:  5,
	MinConnections:  1,
	ConnectTimeout:  10 * time.Second,
	MaxConnLifetime: time.Hour,
	MaxConnIdleTime: 5 * time.Minute,
}

// startPostgres returns a postgresql:// connection URL for a fresh server.
func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUsername),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
		testUsername, testPassword, host, port.Port(), testDatabase)
}

// startMySQL returns a mysql:// connection URL for a fresh server.
func startMySQL(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := mysql.Run(ctx,
		mysqlImage,
		mysql.WithDatabase(testDatabase),
		mysql.WithUsername(testUsername),
		mysql.WithPassword(testPassword),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("mysql://%s:%s@%s:%s/%s",
		testUsername, testPassword, host, port.Port(), testDatabase)
}
