package datasources

import (
	"context"
	"errors"
	"fmt"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

// pragma_table_info reports pk as the 1-based position inside the key, so
// any non-zero value marks a key column.
const sqliteSchemaQuery = `SELECT name, type, "notnull" <> 0 AS "notnull", dflt_value AS dflt, pk > 0 AS pk
FROM pragma_table_info(?)
ORDER BY cid`

type SQLitePlugin struct {
	sqlEngine
}

var _ ports.Datasource = (*SQLitePlugin)(nil)

func NewSQLitePlugin(scanner Scanner, logger logger.Logger) *SQLitePlugin {
	return &SQLitePlugin{
		sqlEngine: sqlEngine{
			kind:        model.DatasourceSQLite,
			dialect:     sqliteDialect,
			scanner:     scanner,
			logger:      logger,
			schemaQuery: sqliteSchemaQuery,
		},
	}
}

// Connect opens an existing database file. A missing file is a connection
// error rather than a fresh empty database.
func (p *SQLitePlugin) Connect(ctx context.Context, cfg model.DatasourceConfig) (ports.Connection, error) {
	if err := p.validate(cfg); err != nil {
		return nil, err
	}

	db, err := infrastructure.OpenSQLite(ctx, cfg.Path, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	return NewSQLConnection(db, p.kind), nil
}

func (p *SQLitePlugin) TestConnection(ctx context.Context, cfg model.DatasourceConfig) error {
	conn, err := p.Connect(ctx, cfg)
	if err != nil {
		return err
	}

	return pingAndClose(ctx, conn.(*SQLConnection).db)
}

func (p *SQLitePlugin) validate(cfg model.DatasourceConfig) error {
	if cfg.Type != "" && cfg.Type != p.kind {
		return fmt.Errorf("%w: expected %s config, got %s", model.ErrConnection, p.kind, cfg.Type)
	}

	if cfg.Path == "" {
		return fmt.Errorf("%w: %w", model.ErrConnection, errors.New("sqlite path is required"))
	}

	return nil
}
