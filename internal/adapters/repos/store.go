package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/pkg/logger"
)

// Store is the metadata database shared by every repository in this
// package. It hides the placeholder and DDL differences of the three
// supported engines.
type Store struct {
	db      *sql.DB
	kind    model.DatasourceType
	builder sq.StatementBuilderType
	scanner Scanner
	logger  logger.Logger
}

func NewStore(db *sql.DB, kind model.DatasourceType, scanner Scanner, log logger.Logger) (*Store, error) {
	format := sq.PlaceholderFormat(sq.Question)

	switch kind {
	case model.DatasourceSQLite, model.DatasourceMySQL:
	case model.DatasourcePostgreSQL:
		format = sq.Dollar
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownDatasource, kind)
	}

	return &Store{
		db:      db,
		kind:    kind,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
		scanner: scanner,
		logger:  log,
	}, nil
}

func (s *Store) Kind() model.DatasourceType { return s.kind }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the metadata tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, statement := range schemaStatements(s.kind) {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("%w: migrating metadata schema: %w", model.ErrMetadataQuery, err)
		}
	}

	s.logger.Info().Str("backend", string(s.kind)).Msg("metadata schema ready")

	return nil
}

// rebind rewrites "?" placeholders of a hand-written statement for the
// engine.
func (s *Store) rebind(query string) string {
	if s.kind != model.DatasourcePostgreSQL {
		return query
	}

	query, err := sq.Dollar.ReplacePlaceholders(query)
	if err != nil {
		return query
	}

	return query
}

func (s *Store) selectAll(ctx context.Context, dst any, builder sq.SelectBuilder) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select query: %w", err)
	}

	return s.queryAll(ctx, dst, query, args...)
}

func (s *Store) queryAll(ctx context.Context, dst any, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	if err := s.scanner.ScanAll(dst, rows); err != nil {
		return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	return nil
}

// selectOne scans exactly one row, returning notFound when there is none.
func (s *Store) selectOne(ctx context.Context, dst any, builder sq.SelectBuilder, notFound error) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	if err := s.scanner.ScanOne(dst, rows); err != nil {
		if s.scanner.IsNotFound(err) {
			return notFound
		}

		return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	return nil
}

func (s *Store) exec(ctx context.Context, builder sq.Sqlizer) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build statement: %w", err)
	}

	return s.execRaw(ctx, query, args...)
}

func (s *Store) execRaw(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	return affected, nil
}

// insertID runs an insert and returns the generated id. PostgreSQL has no
// LastInsertId through database/sql, so it uses RETURNING instead.
func (s *Store) insertID(ctx context.Context, builder sq.InsertBuilder) (int64, error) {
	if s.kind == model.DatasourcePostgreSQL {
		query, args, err := builder.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build insert query: %w", err)
		}

		var id int64
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, s.insertError(err)
		}

		return id, nil
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.insertError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	return id, nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn().Err(rbErr).Msg("rollback failed")
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	return nil
}

func (s *Store) insertError(err error) error {
	if isDuplicateKeyError(err) {
		return errDuplicate
	}

	return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
}

var errDuplicate = errors.New("duplicate key")

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed: unique")
}
