package repos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
)

// ChangelogRepository is the append-only audit log. Views join the author's
// name; entries written by users that were since deleted show an empty name.
type ChangelogRepository struct {
	store *Store
}

func NewChangelogRepository(store *Store) *ChangelogRepository {
	return &ChangelogRepository{store: store}
}

// Append writes all entries in one transaction so a multi-column change is
// recorded completely or not at all.
func (r *ChangelogRepository) Append(ctx context.Context, entries ...model.ChangelogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	builder := r.store.builder.Insert(changelogTable).
		Columns("table_id", "row_pk", "column_name", "old_value", "new_value", "modified_by", "modified_at")

	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, e := range entries {
		at := e.ModifiedAt
		if at.IsZero() {
			at = now
		}

		builder = builder.Values(e.TableID, e.RowPK, e.ColumnName, e.OldValue, e.NewValue, e.ModifiedBy,
			at.UTC().Truncate(time.Microsecond))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
		}

		return nil
	})
}

func (r *ChangelogRepository) ListByTable(ctx context.Context, tableID int64, page model.Page) ([]model.ChangelogView, error) {
	return r.list(ctx, sq.Eq{"c.table_id": tableID}, &page)
}

// ListByRow is unpaginated: a single row's history stays small.
func (r *ChangelogRepository) ListByRow(ctx context.Context, tableID int64, rowPK string) ([]model.ChangelogView, error) {
	return r.list(ctx, sq.Eq{"c.table_id": tableID, "c.row_pk": rowPK}, nil)
}

func (r *ChangelogRepository) ListByUser(ctx context.Context, userID int64, page model.Page) ([]model.ChangelogView, error) {
	return r.list(ctx, sq.Eq{"c.modified_by": userID}, &page)
}

func (r *ChangelogRepository) ClearTable(ctx context.Context, tableID int64) (int64, error) {
	return r.store.exec(ctx, r.store.builder.Delete(changelogTable).Where(sq.Eq{"table_id": tableID}))
}

func (r *ChangelogRepository) list(ctx context.Context, where sq.Sqlizer, page *model.Page) ([]model.ChangelogView, error) {
	builder := r.store.builder.Select(changelogColumns, "COALESCE(u.name, '') AS user_name").
		From(changelogTable+" c").
		LeftJoin(usersTable+" u ON u.id = c.modified_by").
		Where(where).
		OrderBy("c.modified_at DESC", "c.id DESC")

	if page != nil {
		p := page.Normalize()
		builder = builder.Limit(uint64(p.Limit)).Offset(uint64(p.Offset))
	}

	views := make([]model.ChangelogView, 0)
	if err := r.store.selectAll(ctx, &views, builder); err != nil {
		return nil, err
	}

	for i := range views {
		views[i].ModifiedAt = views[i].ModifiedAt.UTC()
	}

	return views, nil
}
