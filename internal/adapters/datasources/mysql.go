package datasources

import (
	"context"
	"fmt"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

const mysqlSchemaQuery = `SELECT COLUMN_NAME AS name,
	COLUMN_TYPE AS type,
	IS_NULLABLE = 'NO' AS notnull,
	COLUMN_DEFAULT AS dflt,
	COLUMN_KEY = 'PRI' AS pk
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

type MySQLPlugin struct {
	sqlEngine
	pool config.Pool
}

var _ ports.Datasource = (*MySQLPlugin)(nil)

func NewMySQLPlugin(pool config.Pool, scanner Scanner, logger logger.Logger) *MySQLPlugin {
	return &MySQLPlugin{
		sqlEngine: sqlEngine{
			kind:        model.DatasourceMySQL,
			dialect:     mysqlDialect,
			scanner:     scanner,
			logger:      logger,
			schemaQuery: mysqlSchemaQuery,
		},
		pool: pool,
	}
}

func (p *MySQLPlugin) Connect(ctx context.Context, cfg model.DatasourceConfig) (ports.Connection, error) {
	if err := validateServerConfig(p.kind, cfg); err != nil {
		return nil, err
	}

	db, err := infrastructure.OpenMySQL(ctx, cfg, p.pool)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	return NewSQLConnection(db, p.kind), nil
}

func (p *MySQLPlugin) TestConnection(ctx context.Context, cfg model.DatasourceConfig) error {
	conn, err := p.Connect(ctx, cfg)
	if err != nil {
		return err
	}

	return pingAndClose(ctx, conn.(*SQLConnection).db)
}

func validateServerConfig(kind model.DatasourceType, cfg model.DatasourceConfig) error {
	if cfg.Type != "" && cfg.Type != kind {
		return fmt.Errorf("%w: expected %s config, got %s", model.ErrConnection, kind, cfg.Type)
	}

	if cfg.Host == "" {
		return fmt.Errorf("%w: host is required", model.ErrConnection)
	}

	if cfg.Database == "" {
		return fmt.Errorf("%w: %w", model.ErrConnection, errNoDatabase)
	}

	return nil
}
