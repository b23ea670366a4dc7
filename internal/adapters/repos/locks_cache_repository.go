package repos

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/pkg/logger"
)

const (
	rowLockKeyPrefix = "rowlock:"
	purgeScanCount   = 200
)

// LocksCacheRepository keeps row locks in KeyDB. Each lock is a hash holding
// the user id and the acquisition time, and it expires on its own once the
// TTL elapses.
type LocksCacheRepository struct {
	client *infrastructure.KeydbClient
	logger logger.Logger
}

func NewLocksCacheRepository(client *infrastructure.KeydbClient, log logger.Logger) *LocksCacheRepository {
	return &LocksCacheRepository{
		client: client,
		logger: log,
	}
}

func (r *LocksCacheRepository) Acquire(ctx context.Context, lock model.RowLock, ttl time.Duration) (bool, error) {
	acquired, err := r.client.AcquireOrRefresh(ctx,
		rowLockKey(lock.TableID, lock.RowPK),
		strconv.FormatInt(lock.LockedBy, 10),
		lock.LockedAt.UTC(),
		ttl,
	)
	if err != nil {
		return false, fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	return acquired, nil
}

func (r *LocksCacheRepository) Release(ctx context.Context, tableID int64, rowPK string, userID int64) error {
	if _, err := r.client.CompareAndDelete(ctx, rowLockKey(tableID, rowPK), strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	return nil
}

func (r *LocksCacheRepository) Get(ctx context.Context, tableID int64, rowPK string) (*model.RowLock, error) {
	claim, err := r.client.GetClaim(ctx, rowLockKey(tableID, rowPK))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
	}

	if claim == nil {
		return nil, nil
	}

	holder, err := strconv.ParseInt(claim.Holder, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: lock holder %q: %w", model.ErrMetadataQuery, claim.Holder, err)
	}

	return &model.RowLock{
		TableID:  tableID,
		RowPK:    rowPK,
		LockedBy: holder,
		LockedAt: claim.Since,
	}, nil
}

// PurgeExpired drops locks taken before the cutoff. Keys with a TTL expire
// by themselves; this catches the ones stored without one.
func (r *LocksCacheRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	var (
		cursor uint64
		purged int64
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, rowLockKeyPrefix+"*", purgeScanCount)
		if err != nil {
			return purged, fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
		}

		for _, key := range keys {
			claim, err := r.client.GetClaim(ctx, key)
			if err != nil {
				r.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable lock")

				continue
			}

			if claim == nil || !claim.Since.Before(before) {
				continue
			}

			released, err := r.client.CompareAndDelete(ctx, key, claim.Holder)
			if err != nil {
				return purged, fmt.Errorf("%w: %w", model.ErrMetadataQuery, err)
			}

			if released {
				purged++
			}
		}

		if next == 0 {
			return purged, nil
		}

		cursor = next
	}
}

// rowLockKey puts the row key last; table ids never contain a colon.
func rowLockKey(tableID int64, rowPK string) string {
	return fmt.Sprintf("%s%d:%s", rowLockKeyPrefix, tableID, rowPK)
}
