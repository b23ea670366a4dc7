package repos

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
)

const tableRefColumns = "t.id, t.table_name, t.db_id, t.display_name, d.db_name, d.con_str"

// CatalogRepository stores registered databases, their tables and the
// column metadata captured at registration.
type CatalogRepository struct {
	store *Store
}

func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

func (r *CatalogRepository) CreateDatabase(ctx context.Context, db model.DBConfig) (int64, error) {
	return r.store.insertID(ctx, r.store.builder.Insert(dbconfigTable).
		Columns("db_name", "con_str", "owner_id").
		Values(db.Name, db.ConStr, db.OwnerID))
}

func (r *CatalogRepository) GetDatabase(ctx context.Context, id int64) (model.DBConfig, error) {
	var db model.DBConfig

	err := r.store.selectOne(ctx, &db,
		r.store.builder.Select("id", "db_name", "con_str", "owner_id").
			From(dbconfigTable).
			Where(sq.Eq{"id": id}),
		fmt.Errorf("%w: %d", model.ErrDatabaseNotFound, id),
	)

	return db, err
}

func (r *CatalogRepository) ListDatabases(ctx context.Context) ([]model.DBConfig, error) {
	dbs := make([]model.DBConfig, 0)

	err := r.store.selectAll(ctx, &dbs,
		r.store.builder.Select("id", "db_name", "con_str", "owner_id").From(dbconfigTable).OrderBy("id"))

	return dbs, err
}

func (r *CatalogRepository) CreateTable(ctx context.Context, table model.TableMeta) (int64, error) {
	return r.store.insertID(ctx, r.store.builder.Insert(tableMetaTable).
		Columns("table_name", "db_id", "display_name").
		Values(table.TableName, table.DBID, table.DisplayName))
}

func (r *CatalogRepository) GetTable(ctx context.Context, id int64) (model.TableRef, error) {
	var ref model.TableRef

	err := r.store.selectOne(ctx, &ref,
		r.tableRefs().Where(sq.Eq{"t.id": id}),
		fmt.Errorf("%w: %d", model.ErrTableNotFound, id),
	)

	return ref, err
}

func (r *CatalogRepository) ListTables(ctx context.Context) ([]model.TableRef, error) {
	refs := make([]model.TableRef, 0)

	err := r.store.selectAll(ctx, &refs, r.tableRefs().OrderBy("t.id"))

	return refs, err
}

func (r *CatalogRepository) ListReadableTables(ctx context.Context, userID int64) ([]model.TableRef, error) {
	t := typesFor(r.store.kind).trueLit

	refs := make([]model.TableRef, 0)

	err := r.store.selectAll(ctx, &refs, r.tableRefs().
		Join(permissionTable+" p ON p.table_id = t.id").
		Where(sq.Eq{"p.user_id": userID}).
		Where(fmt.Sprintf("(p.can_read = %s OR p.is_owner = %s)", t, t)).
		OrderBy("t.id"))

	return refs, err
}

// ReplaceColumns swaps the stored column list of a table in one transaction.
func (r *CatalogRepository) ReplaceColumns(ctx context.Context, tableID int64, columns []model.ColumnMeta) error {
	deleteQuery, deleteArgs, err := r.store.builder.Delete(columnMetaTable).
		Where(sq.Eq{"table_id": tableID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	var (
		insertQuery string
		insertArgs  []any
	)

	if len(columns) > 0 {
		builder := r.store.builder.Insert(columnMetaTable).
			Columns("table_id", "column_name", "display_name", "column_type", "is_visible")

		for _, c := range columns {
			builder = builder.Values(tableID, c.ColumnName, c.DisplayName, c.ColumnType, c.IsVisible)
		}

		insertQuery, insertArgs, err = builder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert query: %w", err)
		}
	}

	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
			return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
		}

		if insertQuery == "" {
			return nil
		}

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
		}

		return nil
	})
}

func (r *CatalogRepository) ListColumns(ctx context.Context, tableID int64) ([]model.ColumnMeta, error) {
	columns := make([]model.ColumnMeta, 0)

	err := r.store.selectAll(ctx, &columns,
		r.store.builder.Select("id", "table_id", "column_name", "display_name", "column_type", "is_visible").
			From(columnMetaTable).
			Where(sq.Eq{"table_id": tableID}).
			OrderBy("id"))

	return columns, err
}

func (r *CatalogRepository) tableRefs() sq.SelectBuilder {
	return r.store.builder.Select(tableRefColumns).
		From(tableMetaTable + " t").
		Join(dbconfigTable + " d ON d.id = t.db_id")
}
