package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type UsersService struct {
	users       ports.UsersRepository
	permissions ports.PermissionsRepository
	hashCost    int
	now         func() time.Time
	logger      logger.Logger
}

var _ ports.UsersService = (*UsersService)(nil)

func NewUsersService(users ports.UsersRepository, permissions ports.PermissionsRepository, log logger.Logger) *UsersService {
	return &UsersService{
		users:       users,
		permissions: permissions,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
		logger:      log,
	}
}

// Authenticate returns the user whose email and password match. Unknown
// emails and wrong passwords fail the same way.
func (s *UsersService) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.User{}, model.ErrInvalidCredentials
		}

		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}

	return user, nil
}

// ResolveActor loads the identity of a request from the stored user.
func (s *UsersService) ResolveActor(ctx context.Context, userID int64) (model.Actor, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Actor{}, err
	}

	return model.Actor{UserID: user.ID, Role: user.Role}, nil
}

func (s *UsersService) CreateUser(ctx context.Context, actor model.Actor, name, email, password string, role model.Role) (model.User, error) {
	if !actor.IsAdmin() {
		return model.User{}, fmt.Errorf("%w: creating users", model.ErrAccessDenied)
	}

	return s.create(ctx, name, email, password, role)
}

func (s *UsersService) ListUsers(ctx context.Context, actor model.Actor) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: listing users", model.ErrAccessDenied)
	}

	return s.users.List(ctx)
}

// UpdateRole changes the role of a user. The last admin cannot be demoted.
func (s *UsersService) UpdateRole(ctx context.Context, actor model.Actor, userID int64, role model.Role) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: changing roles", model.ErrAccessDenied)
	}

	role, err := model.ParseRole(string(role))
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Role == role {
		return nil
	}

	if user.Role == model.RoleAdmin {
		if err := s.requireOtherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", userID).Str("role", string(role)).Int64("changed_by", actor.UserID).Msg("user role changed")

	return nil
}

// DeleteUser removes a user and every permission they held. The last admin
// cannot be deleted.
func (s *UsersService) DeleteUser(ctx context.Context, actor model.Actor, userID int64) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: deleting users", model.ErrAccessDenied)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Role == model.RoleAdmin {
		if err := s.requireOtherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.permissions.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("dropping permissions of user %d: %w", userID, err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", userID).Int64("deleted_by", actor.UserID).Msg("user deleted")

	return nil
}

// CreateInvite issues a single-use registration token for email. Sending
// the token to its recipient happens elsewhere.
func (s *UsersService) CreateInvite(ctx context.Context, actor model.Actor, email string) (model.Invite, error) {
	if !actor.IsAdmin() {
		return model.Invite{}, fmt.Errorf("%w: inviting users", model.ErrAccessDenied)
	}

	email, err := parseEmail(email)
	if err != nil {
		return model.Invite{}, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.Invite{}, fmt.Errorf("%w: %s", model.ErrDuplicateUser, email)
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return model.Invite{}, err
	}

	invite := model.Invite{
		Email:     email,
		Token:     uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}

	if invite.ID, err = s.users.CreateInvite(ctx, invite); err != nil {
		return model.Invite{}, err
	}

	s.logger.Info().Int64("invite_id", invite.ID).Int64("invited_by", actor.UserID).Msg("invite created")

	return invite, nil
}

// Register redeems an open invite and creates a regular user for the
// invited email.
func (s *UsersService) Register(ctx context.Context, token, name, password string) (model.User, error) {
	invite, err := s.users.GetOpenInvite(ctx, token)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.create(ctx, name, invite.Email, password, model.RoleUser)
	if err != nil {
		return model.User{}, err
	}

	if err := s.users.MarkInviteUsed(ctx, token); err != nil {
		return model.User{}, err
	}

	return user, nil
}

// EnsureAdmin creates the bootstrap admin unless an admin already exists.
func (s *UsersService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	admins, err := s.users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}

	if admins > 0 {
		return nil
	}

	user, err := s.create(ctx, name, email, password, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("creating bootstrap admin: %w", err)
	}

	s.logger.Warn().Int64("user_id", user.ID).Str("email", user.Email).Msg("bootstrap admin created")

	return nil
}

func (s *UsersService) create(ctx context.Context, name, email, password string, role model.Role) (model.User, error) {
	errs := model.NewValidationErrors()

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "name is required", "REQUIRED")
	}

	email, err := parseEmail(email)
	if err != nil {
		errs.Add("email", err.Error(), "INVALID_VALUE")
	}

	if len(password) < minPasswordLength {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength), "OUT_OF_RANGE")
	}

	role, err = model.ParseRole(string(role))
	if err != nil {
		errs.Add("role", err.Error(), "INVALID_VALUE")
	}

	if err := errs.Err(); err != nil {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user := model.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}

	if user.ID, err = s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}

	return user, nil
}

func (s *UsersService) requireOtherAdmin(ctx context.Context) error {
	admins, err := s.users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}

	if admins <= 1 {
		return fmt.Errorf("%w: the last admin cannot be removed", model.ErrAccessDenied)
	}

	return nil
}

func parseEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		errs := model.NewValidationErrors()
		errs.Add("email", fmt.Sprintf("invalid email %q", email), "INVALID_VALUE")

		return "", errs
	}

	return strings.ToLower(addr.Address), nil
}
