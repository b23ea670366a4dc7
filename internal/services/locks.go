package services

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

// LockService hands out exclusive row locks. It does not check table
// permissions; callers do that before locking.
type LockService struct {
	locks  ports.LocksRepository
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

var _ ports.LockService = (*LockService)(nil)

// NewLockService builds a lock service. A zero ttl means locks only end when
// their holder releases them.
func NewLockService(locks ports.LocksRepository, ttl time.Duration, log logger.Logger) *LockService {
	return &LockService{
		locks:  locks,
		ttl:    ttl,
		now:    time.Now,
		logger: log,
	}
}

func (s *LockService) LockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) (bool, error) {
	lock := model.RowLock{
		TableID:  tableID,
		RowPK:    rowPK,
		LockedBy: actor.UserID,
		LockedAt: s.now(),
	}

	acquired, err := s.locks.Acquire(ctx, lock, s.ttl)
	if err != nil {
		return false, fmt.Errorf("locking row %s of table %d: %w", rowPK, tableID, err)
	}

	if !acquired {
		s.logger.Debug().Int64("table_id", tableID).Str("row_pk", rowPK).Int64("user_id", actor.UserID).Msg("row lock refused")
	}

	return acquired, nil
}

// UnlockRow releases the row if actor holds it. Releasing someone else's
// lock, or a row that is not locked, does nothing.
func (s *LockService) UnlockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) error {
	if err := s.locks.Release(ctx, tableID, rowPK, actor.UserID); err != nil {
		return fmt.Errorf("unlocking row %s of table %d: %w", rowPK, tableID, err)
	}

	return nil
}

// GetLock returns the live lock on a row, or nil when the row is free or
// its lock has expired.
func (s *LockService) GetLock(ctx context.Context, tableID int64, rowPK string) (*model.RowLock, error) {
	lock, err := s.locks.Get(ctx, tableID, rowPK)
	if err != nil {
		return nil, err
	}

	if lock == nil || lock.Expired(s.now(), s.ttl) {
		return nil, nil
	}

	return lock, nil
}

// PurgeExpired deletes every lock older than the ttl.
func (s *LockService) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	purged, err := s.locks.PurgeExpired(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("purging expired locks: %w", err)
	}

	if purged > 0 {
		s.logger.Info().Int64("purged", purged).Msg("expired row locks purged")
	}

	return purged, nil
}
