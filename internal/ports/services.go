package ports

import (
	"context"

	"github.com/architeacher/nocoflo/internal/domain/model"
)

type (
	// AccessService answers and manages per-table permissions.
	AccessService interface {
		// HasPermission is fail-closed: no row means no access. Admins pass
		// every check.
		HasPermission(ctx context.Context, actor model.Actor, tableID int64, kind model.PermissionKind) (bool, error)

		// RequirePermission returns model.ErrAccessDenied when HasPermission is false.
		RequirePermission(ctx context.Context, actor model.Actor, tableID int64, kind model.PermissionKind) error

		CanManagePermissions(ctx context.Context, actor model.Actor, tableID int64) (bool, error)
		GetUserPermissions(ctx context.Context, actor model.Actor, tableID, userID int64) (model.Permission, error)
		ListTableUsers(ctx context.Context, actor model.Actor, tableID int64) ([]model.TableUser, error)
		GrantPermission(ctx context.Context, actor model.Actor, tableID, userID int64, level model.Level) error
		RevokePermission(ctx context.Context, actor model.Actor, tableID, userID int64) error
	}

	// LockService manages exclusive row locks.
	LockService interface {
		// LockRow returns false when another user holds a live lock.
		LockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) (bool, error)
		UnlockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) error
		GetLock(ctx context.Context, tableID int64, rowPK string) (*model.RowLock, error)
		PurgeExpired(ctx context.Context) (int64, error)
	}

	// AuditService records and lists cell changes.
	AuditService interface {
		LogChange(ctx context.Context, entries ...model.ChangelogEntry) error
		GetChangelog(ctx context.Context, actor model.Actor, tableID int64, page model.Page) ([]model.ChangelogView, error)
		GetRowChangelog(ctx context.Context, actor model.Actor, tableID int64, rowPK string) ([]model.ChangelogView, error)
		GetUserChangelog(ctx context.Context, actor model.Actor, userID int64, page model.Page) ([]model.ChangelogView, error)
		ClearChangelog(ctx context.Context, actor model.Actor, tableID int64) (int64, error)
	}

	// RowsService runs data operations against registered tables.
	RowsService interface {
		ReadRows(ctx context.Context, actor model.Actor, tableID int64, query model.QuerySpec) (*model.Table, error)
		InsertRow(ctx context.Context, actor model.Actor, tableID int64, payload map[string]any) (int64, error)
		UpdateRows(ctx context.Context, actor model.Actor, tableID int64, filter model.Filter, payload map[string]any) (int64, error)
		EditCell(ctx context.Context, actor model.Actor, tableID int64, rowPK, column string, value any) (int64, error)
		DeleteRows(ctx context.Context, actor model.Actor, tableID int64, filter model.Filter) (int64, error)
		DescribeTable(ctx context.Context, tableID int64) (model.Schema, error)

		// LockRow needs write access and returns model.ErrLockConflict when
		// another user holds the row.
		LockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) error
		UnlockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) error
	}

	// CatalogService registers databases and tables.
	CatalogService interface {
		RegisterDatabase(ctx context.Context, actor model.Actor, name, conStr string) (model.DBConfig, error)
		RegisterTable(ctx context.Context, actor model.Actor, dbID int64, tableName, displayName string) (model.TableMeta, error)
		ListDatabases(ctx context.Context, actor model.Actor) ([]model.DBConfig, error)
		ListAccessibleTables(ctx context.Context, actor model.Actor) ([]model.TableRef, error)
		ListColumns(ctx context.Context, actor model.Actor, tableID int64) ([]model.ColumnMeta, error)
	}

	// UsersService manages accounts and invites.
	UsersService interface {
		Authenticate(ctx context.Context, email, password string) (model.User, error)
		ResolveActor(ctx context.Context, userID int64) (model.Actor, error)
		CreateUser(ctx context.Context, actor model.Actor, name, email, password string, role model.Role) (model.User, error)
		ListUsers(ctx context.Context, actor model.Actor) ([]model.User, error)
		UpdateRole(ctx context.Context, actor model.Actor, userID int64, role model.Role) error
		DeleteUser(ctx context.Context, actor model.Actor, userID int64) error
		CreateInvite(ctx context.Context, actor model.Actor, email string) (model.Invite, error)
		Register(ctx context.Context, token, name, password string) (model.User, error)
		EnsureAdmin(ctx context.Context, name, email, password string) error
	}
)
