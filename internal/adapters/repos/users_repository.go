package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
)

var userColumns = []string{"id", "name", "email", "password_hash", "role"}

// UsersRepository stores accounts and the invites that create them.
// Emails are compared lower-cased.
type UsersRepository struct {
	store *Store
}

func NewUsersRepository(store *Store) *UsersRepository {
	return &UsersRepository{store: store}
}

func (r *UsersRepository) Create(ctx context.Context, user model.User) (int64, error) {
	id, err := r.store.insertID(ctx, r.store.builder.Insert(usersTable).
		Columns("name", "email", "password_hash", "role").
		Values(user.Name, normalizeEmail(user.Email), user.PasswordHash, string(user.Role)))
	if errors.Is(err, errDuplicate) {
		return 0, fmt.Errorf("%w: %s", model.ErrDuplicateUser, user.Email)
	}

	return id, err
}

func (r *UsersRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id}, fmt.Errorf("%w: %d", model.ErrUserNotFound, id))
}

func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, sq.Eq{"email": normalizeEmail(email)}, fmt.Errorf("%w: %s", model.ErrUserNotFound, email))
}

func (r *UsersRepository) List(ctx context.Context) ([]model.User, error) {
	users := make([]model.User, 0)

	err := r.store.selectAll(ctx, &users, r.store.builder.Select(userColumns...).From(usersTable).OrderBy("id"))

	return users, err
}

func (r *UsersRepository) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	affected, err := r.store.exec(ctx, r.store.builder.Update(usersTable).
		Set("role", string(role)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}

	// MySQL reports zero for a no-op update, so confirm the user exists.
	if affected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

func (r *UsersRepository) Delete(ctx context.Context, id int64) error {
	affected, err := r.store.exec(ctx, r.store.builder.Delete(usersTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("%w: %d", model.ErrUserNotFound, id)
	}

	return nil
}

func (r *UsersRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var counts []int64

	err := r.store.selectAll(ctx, &counts,
		r.store.builder.Select("COUNT(*)").From(usersTable).Where(sq.Eq{"role": string(role)}))
	if err != nil {
		return 0, err
	}

	if len(counts) == 0 {
		return 0, nil
	}

	return counts[0], nil
}

func (r *UsersRepository) CreateInvite(ctx context.Context, invite model.Invite) (int64, error) {
	createdAt := invite.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return r.store.insertID(ctx, r.store.builder.Insert(inviteTable).
		Columns("email", "token", "used", "created_at").
		Values(normalizeEmail(invite.Email), invite.Token, false, createdAt.UTC().Truncate(time.Microsecond)))
}

// GetOpenInvite finds an unused invite by token.
func (r *UsersRepository) GetOpenInvite(ctx context.Context, token string) (model.Invite, error) {
	var invite model.Invite

	err := r.store.selectOne(ctx, &invite,
		r.store.builder.Select("id", "email", "token", "used", "created_at").
			From(inviteTable).
			Where(sq.Eq{"token": token, "used": false}),
		model.ErrInvalidCredentials,
	)
	if err != nil {
		return model.Invite{}, err
	}

	invite.CreatedAt = invite.CreatedAt.UTC()

	return invite, nil
}

// MarkInviteUsed consumes the invite. A second call for the same token fails,
// so a token can register at most one account.
func (r *UsersRepository) MarkInviteUsed(ctx context.Context, token string) error {
	affected, err := r.store.exec(ctx, r.store.builder.Update(inviteTable).
		Set("used", true).
		Where(sq.Eq{"token": token, "used": false}))
	if err != nil {
		return err
	}

	if affected == 0 {
		return model.ErrInvalidCredentials
	}

	return nil
}

func (r *UsersRepository) getOne(ctx context.Context, where sq.Eq, notFound error) (model.User, error) {
	var user model.User

	err := r.store.selectOne(ctx, &user,
		r.store.builder.Select(userColumns...).From(usersTable).Where(where),
		notFound,
	)

	return user, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
