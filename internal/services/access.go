package services

import (
	"context"
	"fmt"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

// AccessService evaluates per-table permissions. Admins pass every check;
// everyone else needs a permission row, and a missing row denies.
type AccessService struct {
	permissions ports.PermissionsRepository
	users       ports.UsersRepository
	catalog     ports.CatalogRepository
	logger      logger.Logger
}

var _ ports.AccessService = (*AccessService)(nil)

func NewAccessService(
	permissions ports.PermissionsRepository,
	users ports.UsersRepository,
	catalog ports.CatalogRepository,
	log logger.Logger,
) *AccessService {
	return &AccessService{
		permissions: permissions,
		users:       users,
		catalog:     catalog,
		logger:      log,
	}
}

func (s *AccessService) HasPermission(ctx context.Context, actor model.Actor, tableID int64, kind model.PermissionKind) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}

	perm, found, err := s.permissions.Get(ctx, actor.UserID, tableID)
	if err != nil {
		return false, fmt.Errorf("checking %s permission on table %d: %w", kind, tableID, err)
	}

	if !found {
		return false, nil
	}

	return perm.Allows(kind), nil
}

func (s *AccessService) RequirePermission(ctx context.Context, actor model.Actor, tableID int64, kind model.PermissionKind) error {
	allowed, err := s.HasPermission(ctx, actor, tableID, kind)
	if err != nil {
		return err
	}

	if !allowed {
		return fmt.Errorf("%w: %s on table %d", model.ErrAccessDenied, kind, tableID)
	}

	return nil
}

// CanManagePermissions is true for admins and table owners.
func (s *AccessService) CanManagePermissions(ctx context.Context, actor model.Actor, tableID int64) (bool, error) {
	return s.HasPermission(ctx, actor, tableID, model.PermOwner)
}

// GetUserPermissions returns the flags userID holds on tableID. Users may
// read their own; reading anyone else's needs manage rights.
func (s *AccessService) GetUserPermissions(ctx context.Context, actor model.Actor, tableID, userID int64) (model.Permission, error) {
	if actor.UserID != userID {
		if err := s.requireManage(ctx, actor, tableID); err != nil {
			return model.Permission{}, err
		}
	}

	perm, found, err := s.permissions.Get(ctx, userID, tableID)
	if err != nil {
		return model.Permission{}, err
	}

	if !found {
		return model.Permission{UserID: userID, TableID: tableID}, nil
	}

	return perm, nil
}

func (s *AccessService) ListTableUsers(ctx context.Context, actor model.Actor, tableID int64) ([]model.TableUser, error) {
	if err := s.requireManage(ctx, actor, tableID); err != nil {
		return nil, err
	}

	if _, err := s.catalog.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	return s.permissions.ListTableUsers(ctx, tableID)
}

// GrantPermission replaces whatever userID held on tableID with the flag set
// of level. Granting the same level twice leaves one identical row.
func (s *AccessService) GrantPermission(ctx context.Context, actor model.Actor, tableID, userID int64, level model.Level) error {
	if _, err := model.ParseLevel(string(level)); err != nil {
		return err
	}

	if err := s.requireManage(ctx, actor, tableID); err != nil {
		return err
	}

	if _, err := s.catalog.GetTable(ctx, tableID); err != nil {
		return err
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	if err := s.permissions.Upsert(ctx, model.PermissionForLevel(userID, tableID, level)); err != nil {
		return fmt.Errorf("granting %s on table %d to user %d: %w", level, tableID, userID, err)
	}

	s.logger.Info().
		Int64("table_id", tableID).
		Int64("user_id", userID).
		Int64("granted_by", actor.UserID).
		Str("level", string(level)).
		Msg("permission granted")

	return nil
}

func (s *AccessService) RevokePermission(ctx context.Context, actor model.Actor, tableID, userID int64) error {
	if err := s.requireManage(ctx, actor, tableID); err != nil {
		return err
	}

	if err := s.permissions.Delete(ctx, userID, tableID); err != nil {
		return fmt.Errorf("revoking permissions on table %d from user %d: %w", tableID, userID, err)
	}

	s.logger.Info().
		Int64("table_id", tableID).
		Int64("user_id", userID).
		Int64("revoked_by", actor.UserID).
		Msg("permission revoked")

	return nil
}

func (s *AccessService) requireManage(ctx context.Context, actor model.Actor, tableID int64) error {
	allowed, err := s.CanManagePermissions(ctx, actor, tableID)
	if err != nil {
		return err
	}

	if !allowed {
		return fmt.Errorf("%w: managing permissions on table %d", model.ErrAccessDenied, tableID)
	}

	return nil
}
