package datasources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

type (
	// SQLConnection is a database/sql backed connection shared by the SQLite
	// and MySQL plugins.
	SQLConnection struct {
		db   *sql.DB
		kind model.DatasourceType
	}

	// sqlEngine carries the statement execution shared by database/sql
	// backends. Plugins embed it and add connect and introspection.
	sqlEngine struct {
		kind        model.DatasourceType
		dialect     dialect
		scanner     Scanner
		logger      logger.Logger
		schemaQuery string
	}
)

func NewSQLConnection(db *sql.DB, kind model.DatasourceType) *SQLConnection {
	return &SQLConnection{db: db, kind: kind}
}

func (c *SQLConnection) Close() error { return c.db.Close() }

// DB exposes the underlying handle for callers that share it.
func (c *SQLConnection) DB() *sql.DB { return c.db }

func (e sqlEngine) Kind() model.DatasourceType { return e.kind }

func (e sqlEngine) conn(conn ports.Connection) (*SQLConnection, error) {
	c, ok := conn.(*SQLConnection)
	if !ok || c == nil || c.kind != e.kind {
		return nil, fmt.Errorf("%w: %s plugin received a foreign connection %T", model.ErrConnection, e.kind, conn)
	}

	return c, nil
}

func (e sqlEngine) Read(ctx context.Context, conn ports.Connection, spec model.QuerySpec) (*model.Table, error) {
	c, err := e.conn(conn)
	if err != nil {
		return nil, err
	}

	query, args, err := e.dialect.selectQuery(spec)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("datasource", string(e.kind)).
		Str("query", query).
		Int("args", len(args)).
		Msg("executing read")

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}

	numeric := numericColumns(rows)

	var records []map[string]any
	if err := e.scanner.ScanAllSQL(&records, rows); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}

	if len(columns) == 0 {
		e.logger.Warn().
			Str("datasource", string(e.kind)).
			Str("table", spec.Table).
			Msg("driver reported no column labels, falling back to schema introspection")

		schema, err := e.GetSchema(ctx, conn, spec.Table)
		if err != nil {
			return nil, err
		}

		columns = schema.Names()
	}

	table := model.NewTable(columns)
	for _, record := range records {
		table.Rows = append(table.Rows, model.Row(normalizeRow(record, numeric)))
	}

	return table, nil
}

func (e sqlEngine) Insert(ctx context.Context, conn ports.Connection, spec model.InsertSpec) (int64, error) {
	c, err := e.conn(conn)
	if err != nil {
		return 0, err
	}

	query, args, err := e.dialect.insertQuery(spec)
	if err != nil {
		return 0, err
	}

	affected, err := e.exec(ctx, c, query, args)
	if err != nil {
		return 0, err
	}

	if affected < 0 {
		return 1, nil
	}

	return affected, nil
}

func (e sqlEngine) Update(ctx context.Context, conn ports.Connection, spec model.UpdateSpec) (int64, error) {
	c, err := e.conn(conn)
	if err != nil {
		return 0, err
	}

	query, args, err := e.dialect.updateQuery(spec)
	if err != nil {
		return 0, err
	}

	affected, err := e.exec(ctx, c, query, args)
	if err != nil {
		return 0, err
	}

	return max(affected, 0), nil
}

func (e sqlEngine) Delete(ctx context.Context, conn ports.Connection, spec model.DeleteSpec) (int64, error) {
	c, err := e.conn(conn)
	if err != nil {
		return 0, err
	}

	query, args, err := e.dialect.deleteQuery(spec)
	if err != nil {
		return 0, err
	}

	affected, err := e.exec(ctx, c, query, args)
	if err != nil {
		return 0, err
	}

	return max(affected, 0), nil
}

func (e sqlEngine) GetSchema(ctx context.Context, conn ports.Connection, table string) (model.Schema, error) {
	c, err := e.conn(conn)
	if err != nil {
		return nil, err
	}

	if err := model.ValidateIdentifier("table", table); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, e.schemaQuery, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}
	defer rows.Close()

	var columns []columnRow
	if err := e.scanner.ScanAllSQL(&columns, rows); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}

	return toSchema(table, columns)
}

// exec runs a statement and returns the affected row count, or -1 when the
// driver cannot report one.
func (e sqlEngine) exec(ctx context.Context, c *SQLConnection, query string, args []any) (int64, error) {
	e.logger.Debug().
		Str("datasource", string(e.kind)).
		Str("query", query).
		Int("args", len(args)).
		Msg("executing statement")

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrExecution, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return -1, nil
	}

	return affected, nil
}

func pingAndClose(ctx context.Context, db *sql.DB) error {
	pingErr := db.PingContext(ctx)
	closeErr := db.Close()

	if pingErr != nil {
		return fmt.Errorf("%w: %w", model.ErrConnection, pingErr)
	}

	if closeErr != nil {
		return fmt.Errorf("%w: %w", model.ErrConnection, closeErr)
	}

	return nil
}

func toSchema(table string, columns []columnRow) (model.Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrTableNotFound, table)
	}

	schema := make(model.Schema, 0, len(columns))
	for _, c := range columns {
		schema = append(schema, model.ColumnSchema{
			Name:       c.Name,
			Type:       c.Type,
			NotNull:    c.NotNull,
			Default:    c.Default,
			PrimaryKey: c.PrimaryKey,
		})
	}

	return schema, nil
}

var errNoDatabase = errors.New("database name is required")
