package datasources

import (
	"context"
	"fmt"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure/postgres"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const postgresSchemaQuery = `SELECT c.column_name::text AS name,
	c.data_type::text AS type,
	c.is_nullable = 'NO' AS notnull,
	c.column_default::text AS dflt,
	EXISTS (
		SELECT 1
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
			AND kcu.table_name = tc.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND kcu.column_name = c.column_name
	) AS pk
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`

type (
	// PoolOps is the slice of pgxpool.Pool the plugin uses, so tests can
	// substitute pgxmock.
	PoolOps interface {
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		Ping(ctx context.Context) error
		Close()
	}

	// PoolFactory opens a pool for a config.
	PoolFactory func(ctx context.Context, cfg model.DatasourceConfig) (PoolOps, error)

	PgConnection struct {
		pool PoolOps
	}

	PostgresPlugin struct {
		dialect dialect
		scanner Scanner
		logger  logger.Logger
		newPool PoolFactory
	}
)

var _ ports.Datasource = (*PostgresPlugin)(nil)

func NewPgConnection(pool PoolOps) *PgConnection {
	return &PgConnection{pool: pool}
}

func (c *PgConnection) Close() error {
	c.pool.Close()

	return nil
}

// NewPgxPoolFactory opens real pgx pools with the given pool settings.
func NewPgxPoolFactory(poolCfg config.Pool) PoolFactory {
	return func(ctx context.Context, cfg model.DatasourceConfig) (PoolOps, error) {
		pool, err := postgres.NewPool(ctx, cfg, poolCfg)
		if err != nil {
			return nil, err
		}

		return pool, nil
	}
}

func NewPostgresPlugin(newPool PoolFactory, scanner Scanner, logger logger.Logger) *PostgresPlugin {
	return &PostgresPlugin{
		dialect: postgresDialect,
		scanner: scanner,
		logger:  logger,
		newPool: newPool,
	}
}

func (p *PostgresPlugin) Kind() model.DatasourceType { return model.DatasourcePostgreSQL }

func (p *PostgresPlugin) Connect(ctx context.Context, cfg model.DatasourceConfig) (ports.Connection, error) {
	if err := validateServerConfig(p.Kind(), cfg); err != nil {
		return nil, err
	}

	pool, err := p.newPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	return NewPgConnection(pool), nil
}

func (p *PostgresPlugin) TestConnection(ctx context.Context, cfg model.DatasourceConfig) error {
	conn, err := p.Connect(ctx, cfg)
	if err != nil {
		return err
	}

	pool := conn.(*PgConnection).pool
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	return nil
}

func (p *PostgresPlugin) Read(ctx context.Context, conn ports.Connection, spec model.QuerySpec) (*model.Table, error) {
	c, err := p.conn(conn)
	if err != nil {
		return nil, err
	}

	query, args, err := p.dialect.selectQuery(spec)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("datasource", string(p.Kind())).
		Str("query", query).
		Int("args", len(args)).
		Msg("executing read")

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, 0, len(fields))

	for _, field := range fields {
		columns = append(columns, field.Name)
	}

	var records []map[string]any
	if err := p.scanner.ScanAllPgx(&records, rows); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}

	if len(columns) == 0 {
		p.logger.Warn().
			Str("datasource", string(p.Kind())).
			Str("table", spec.Table).
			Msg("driver reported no column labels, falling back to schema introspection")

		schema, err := p.GetSchema(ctx, conn, spec.Table)
		if err != nil {
			return nil, err
		}

		columns = schema.Names()
	}

	table := model.NewTable(columns)
	for _, record := range records {
		table.Rows = append(table.Rows, model.Row(normalizeRow(record, nil)))
	}

	return table, nil
}

func (p *PostgresPlugin) Insert(ctx context.Context, conn ports.Connection, spec model.InsertSpec) (int64, error) {
	query, args, err := p.dialect.insertQuery(spec)
	if err != nil {
		return 0, err
	}

	affected, err := p.exec(ctx, conn, query, args)
	if err != nil {
		return 0, err
	}

	if affected == 0 {
		return 1, nil
	}

	return affected, nil
}

func (p *PostgresPlugin) Update(ctx context.Context, conn ports.Connection, spec model.UpdateSpec) (int64, error) {
	query, args, err := p.dialect.updateQuery(spec)
	if err != nil {
		return 0, err
	}

	return p.exec(ctx, conn, query, args)
}

func (p *PostgresPlugin) Delete(ctx context.Context, conn ports.Connection, spec model.DeleteSpec) (int64, error) {
	query, args, err := p.dialect.deleteQuery(spec)
	if err != nil {
		return 0, err
	}

	return p.exec(ctx, conn, query, args)
}

func (p *PostgresPlugin) GetSchema(ctx context.Context, conn ports.Connection, table string) (model.Schema, error) {
	c, err := p.conn(conn)
	if err != nil {
		return nil, err
	}

	if err := model.ValidateIdentifier("table", table); err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, postgresSchemaQuery, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}
	defer rows.Close()

	var columns []columnRow
	if err := p.scanner.ScanAllPgx(&columns, rows); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}

	return toSchema(table, columns)
}

func (p *PostgresPlugin) exec(ctx context.Context, conn ports.Connection, query string, args []any) (int64, error) {
	c, err := p.conn(conn)
	if err != nil {
		return 0, err
	}

	p.logger.Debug().
		Str("datasource", string(p.Kind())).
		Str("query", query).
		Int("args", len(args)).
		Msg("executing statement")

	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}

	return tag.RowsAffected(), nil
}

func (p *PostgresPlugin) conn(conn ports.Connection) (*PgConnection, error) {
	c, ok := conn.(*PgConnection)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %s plugin received a foreign connection %T", model.ErrConnection, p.Kind(), conn)
	}

	return c, nil
}
