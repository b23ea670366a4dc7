package ports

import (
	"context"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
)

type (
	PermissionsRepository interface {
		// Get returns the permission row for (userID, tableID). The boolean is
		// false when no row exists.
		Get(ctx context.Context, userID, tableID int64) (model.Permission, bool, error)

		// Upsert inserts or replaces the row for (perm.UserID, perm.TableID).
		Upsert(ctx context.Context, perm model.Permission) error

		// Delete removes the row for (userID, tableID), if any.
		Delete(ctx context.Context, userID, tableID int64) error

		// ListTableUsers lists every user with their flags on tableID.
		ListTableUsers(ctx context.Context, tableID int64) ([]model.TableUser, error)

		// DeleteByUser removes every row held by userID.
		DeleteByUser(ctx context.Context, userID int64) error
	}

	LocksRepository interface {
		// Acquire takes or refreshes the lock in one atomic step. It succeeds
		// when the row is unlocked, already held by lock.LockedBy, or held by a
		// lock older than ttl.
		Acquire(ctx context.Context, lock model.RowLock, ttl time.Duration) (bool, error)

		// Release drops the lock only if it is held by userID.
		Release(ctx context.Context, tableID int64, rowPK string, userID int64) error

		// Get returns the current lock, or nil when the row is unlocked.
		Get(ctx context.Context, tableID int64, rowPK string) (*model.RowLock, error)

		// PurgeExpired deletes locks taken before the cutoff.
		PurgeExpired(ctx context.Context, before time.Time) (int64, error)
	}

	ChangelogRepository interface {
		Append(ctx context.Context, entries ...model.ChangelogEntry) error
		ListByTable(ctx context.Context, tableID int64, page model.Page) ([]model.ChangelogView, error)
		ListByRow(ctx context.Context, tableID int64, rowPK string) ([]model.ChangelogView, error)
		ListByUser(ctx context.Context, userID int64, page model.Page) ([]model.ChangelogView, error)
		ClearTable(ctx context.Context, tableID int64) (int64, error)
	}

	CatalogRepository interface {
		CreateDatabase(ctx context.Context, db model.DBConfig) (int64, error)
		GetDatabase(ctx context.Context, id int64) (model.DBConfig, error)
		ListDatabases(ctx context.Context) ([]model.DBConfig, error)

		CreateTable(ctx context.Context, table model.TableMeta) (int64, error)
		GetTable(ctx context.Context, id int64) (model.TableRef, error)
		ListTables(ctx context.Context) ([]model.TableRef, error)
		// ListReadableTables lists tables userID may read or owns.
		ListReadableTables(ctx context.Context, userID int64) ([]model.TableRef, error)

		ReplaceColumns(ctx context.Context, tableID int64, columns []model.ColumnMeta) error
		ListColumns(ctx context.Context, tableID int64) ([]model.ColumnMeta, error)
	}

	UsersRepository interface {
		Create(ctx context.Context, user model.User) (int64, error)
		GetByID(ctx context.Context, id int64) (model.User, error)
		GetByEmail(ctx context.Context, email string) (model.User, error)
		List(ctx context.Context) ([]model.User, error)
		UpdateRole(ctx context.Context, id int64, role model.Role) error
		Delete(ctx context.Context, id int64) error
		CountByRole(ctx context.Context, role model.Role) (int64, error)

		CreateInvite(ctx context.Context, invite model.Invite) (int64, error)
		GetOpenInvite(ctx context.Context, token string) (model.Invite, error)
		MarkInviteUsed(ctx context.Context, token string) error
	}

	// SchemaCache keeps introspected table schemas keyed by table id.
	SchemaCache interface {
		GetSchema(ctx context.Context, tableID int64) (*CacheResult[model.Schema], error)
		SetSchema(ctx context.Context, tableID int64, schema model.Schema, ttl time.Duration) error
		InvalidateSchema(ctx context.Context, tableID int64) error
	}

	// CacheResult holds the result of a cache lookup.
	CacheResult[T any] struct {
		Data T
		Hit  bool
		Key  string
	}
)
