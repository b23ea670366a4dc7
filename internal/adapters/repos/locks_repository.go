package repos

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
)

const (
	lockInsert = `INSERT INTO row_lock (table_id, row_pk, locked_by, locked_at) VALUES (?, ?, ?, ?) `

	lockUpsertRefresh = lockInsert + `ON CONFLICT (table_id, row_pk) DO UPDATE
SET locked_by = excluded.locked_by, locked_at = excluded.locked_at
WHERE row_lock.locked_by = excluded.locked_by`

	lockUpsertExpiring = lockUpsertRefresh + ` OR row_lock.locked_at < ?`

	lockUpsertMySQLRefresh = lockInsert + `ON DUPLICATE KEY UPDATE
locked_at = IF(locked_by = VALUES(locked_by), VALUES(locked_at), locked_at)`

	// MySQL applies assignments left to right. locked_by is decided against
	// the stored row and afterwards equals the caller's id only when the
	// caller already held the lock or just took it over.
	lockUpsertMySQLExpiring = lockInsert + `ON DUPLICATE KEY UPDATE
locked_by = IF(locked_by = VALUES(locked_by) OR locked_at < ?, VALUES(locked_by), locked_by),
locked_at = IF(locked_by = VALUES(locked_by), VALUES(locked_at), locked_at)`
)

// LocksRepository keeps row locks in the metadata store. Acquisition is one
// conditional upsert, so two callers racing for the same row cannot both
// win.
type LocksRepository struct {
	store *Store
}

func NewLocksRepository(store *Store) *LocksRepository {
	return &LocksRepository{store: store}
}

func (r *LocksRepository) Acquire(ctx context.Context, lock model.RowLock, ttl time.Duration) (bool, error) {
	lockedAt := lock.LockedAt.UTC().Truncate(time.Microsecond)
	args := []any{lock.TableID, lock.RowPK, lock.LockedBy, lockedAt}

	var query string

	switch {
	case r.store.kind == model.DatasourceMySQL && ttl > 0:
		query = lockUpsertMySQLExpiring
		args = append(args, lockedAt.Add(-ttl))
	case r.store.kind == model.DatasourceMySQL:
		query = lockUpsertMySQLRefresh
	case ttl > 0:
		query = lockUpsertExpiring
		args = append(args, lockedAt.Add(-ttl))
	default:
		query = lockUpsertRefresh
	}

	affected, err := r.store.execRaw(ctx, r.store.rebind(query), args...)
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *LocksRepository) Release(ctx context.Context, tableID int64, rowPK string, userID int64) error {
	_, err := r.store.exec(ctx, r.store.builder.Delete(rowLockTable).
		Where(sq.Eq{"table_id": tableID, "row_pk": rowPK, "locked_by": userID}))

	return err
}

func (r *LocksRepository) Get(ctx context.Context, tableID int64, rowPK string) (*model.RowLock, error) {
	var lock model.RowLock

	err := r.store.selectOne(ctx, &lock,
		r.store.builder.Select("table_id", "row_pk", "locked_by", "locked_at").
			From(rowLockTable).
			Where(sq.Eq{"table_id": tableID, "row_pk": rowPK}),
		errNotFound,
	)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	lock.LockedAt = lock.LockedAt.UTC()

	return &lock, nil
}

func (r *LocksRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return r.store.exec(ctx, r.store.builder.Delete(rowLockTable).
		Where(sq.Lt{"locked_at": before.UTC().Truncate(time.Microsecond)}))
}
