package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
)

var permissionFlags = []string{"can_read", "can_write", "can_delete", "is_owner"}

// PermissionsRepository stores one flag row per (user, table).
type PermissionsRepository struct {
	store *Store
}

func NewPermissionsRepository(store *Store) *PermissionsRepository {
	return &PermissionsRepository{store: store}
}

func (r *PermissionsRepository) Get(ctx context.Context, userID, tableID int64) (model.Permission, bool, error) {
	var perm model.Permission

	err := r.store.selectOne(ctx, &perm,
		r.store.builder.Select("user_id", "table_id", "can_read", "can_write", "can_delete", "is_owner").
			From(permissionTable).
			Where(sq.Eq{"user_id": userID, "table_id": tableID}),
		errNotFound,
	)
	if errors.Is(err, errNotFound) {
		return model.Permission{}, false, nil
	}

	if err != nil {
		return model.Permission{}, false, err
	}

	return perm, true, nil
}

// Upsert relies on the (user_id, table_id) unique key so concurrent grants
// never leave two rows behind.
func (r *PermissionsRepository) Upsert(ctx context.Context, perm model.Permission) error {
	builder := r.store.builder.Insert(permissionTable).
		Columns("user_id", "table_id", "can_read", "can_write", "can_delete", "is_owner").
		Values(perm.UserID, perm.TableID, perm.CanRead, perm.CanWrite, perm.CanDelete, perm.IsOwner).
		Suffix(upsertSuffix(r.store.kind, []string{"user_id", "table_id"}, permissionFlags))

	if _, err := r.store.exec(ctx, builder); err != nil {
		return err
	}

	r.store.logger.Debug().
		Int64("user_id", perm.UserID).
		Int64("table_id", perm.TableID).
		Str("level", perm.LevelName()).
		Msg("permission stored")

	return nil
}

func (r *PermissionsRepository) Delete(ctx context.Context, userID, tableID int64) error {
	_, err := r.store.exec(ctx, r.store.builder.Delete(permissionTable).
		Where(sq.Eq{"user_id": userID, "table_id": tableID}))

	return err
}

func (r *PermissionsRepository) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.store.exec(ctx, r.store.builder.Delete(permissionTable).Where(sq.Eq{"user_id": userID}))

	return err
}

// ListTableUsers returns every user, with all flags false for users that
// hold nothing on the table.
func (r *PermissionsRepository) ListTableUsers(ctx context.Context, tableID int64) ([]model.TableUser, error) {
	f := typesFor(r.store.kind).falseLit

	builder := r.store.builder.Select(
		"u.id", "u.name", "u.email", "u.password_hash", "u.role",
		"u.id AS user_id",
		fmt.Sprintf("%d AS table_id", tableID),
		fmt.Sprintf("COALESCE(p.can_read, %s) AS can_read", f),
		fmt.Sprintf("COALESCE(p.can_write, %s) AS can_write", f),
		fmt.Sprintf("COALESCE(p.can_delete, %s) AS can_delete", f),
		fmt.Sprintf("COALESCE(p.is_owner, %s) AS is_owner", f),
	).
		From(usersTable+" u").
		LeftJoin(permissionTable+" p ON p.user_id = u.id AND p.table_id = ?", tableID).
		OrderBy("u.name", "u.id")

	var users []model.TableUser
	if err := r.store.selectAll(ctx, &users, builder); err != nil {
		return nil, err
	}

	for i := range users {
		users[i].Level = users[i].Permission.LevelName()
	}

	return users, nil
}

// upsertSuffix renders the conflict clause that overwrites columns when the
// key already exists.
func upsertSuffix(kind model.DatasourceType, key, columns []string) string {
	sets := make([]string, 0, len(columns))

	if kind == model.DatasourceMySQL {
		for _, c := range columns {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}

		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}

	for _, c := range columns {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(key, ", "), strings.Join(sets, ", "))
}

var errNotFound = errors.New("not found")
