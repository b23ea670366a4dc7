package services

import (
	"context"
	"fmt"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

type AuditService struct {
	changelog ports.ChangelogRepository
	access    ports.AccessService
	logger    logger.Logger
}

var _ ports.AuditService = (*AuditService)(nil)

func NewAuditService(changelog ports.ChangelogRepository, access ports.AccessService, log logger.Logger) *AuditService {
	return &AuditService{
		changelog: changelog,
		access:    access,
		logger:    log,
	}
}

func (s *AuditService) LogChange(ctx context.Context, entries ...model.ChangelogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := s.changelog.Append(ctx, entries...); err != nil {
		return fmt.Errorf("recording %d changes: %w", len(entries), err)
	}

	return nil
}

func (s *AuditService) GetChangelog(ctx context.Context, actor model.Actor, tableID int64, page model.Page) ([]model.ChangelogView, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermRead); err != nil {
		return nil, err
	}

	return s.changelog.ListByTable(ctx, tableID, page.Normalize())
}

func (s *AuditService) GetRowChangelog(ctx context.Context, actor model.Actor, tableID int64, rowPK string) ([]model.ChangelogView, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermRead); err != nil {
		return nil, err
	}

	return s.changelog.ListByRow(ctx, tableID, rowPK)
}

// GetUserChangelog lists what one user changed. Users see their own history;
// only admins see anyone else's.
func (s *AuditService) GetUserChangelog(ctx context.Context, actor model.Actor, userID int64, page model.Page) ([]model.ChangelogView, error) {
	if !actor.IsAdmin() && actor.UserID != userID {
		return nil, fmt.Errorf("%w: changelog of user %d", model.ErrAccessDenied, userID)
	}

	return s.changelog.ListByUser(ctx, userID, page.Normalize())
}

func (s *AuditService) ClearChangelog(ctx context.Context, actor model.Actor, tableID int64) (int64, error) {
	if !actor.IsAdmin() {
		return 0, fmt.Errorf("%w: clearing changelog of table %d", model.ErrAccessDenied, tableID)
	}

	cleared, err := s.changelog.ClearTable(ctx, tableID)
	if err != nil {
		return 0, fmt.Errorf("clearing changelog of table %d: %w", tableID, err)
	}

	s.logger.Warn().Int64("table_id", tableID).Int64("cleared", cleared).Int64("user_id", actor.UserID).Msg("changelog cleared")

	return cleared, nil
}
