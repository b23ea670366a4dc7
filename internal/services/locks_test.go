package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/internal/adapters/repos"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newLockService(t *testing.T, ttl time.Duration) (*LockService, *clock) {
	t.Helper()

	ctx := context.Background()

	db, err := infrastructure.OpenSQLite(ctx, filepath.Join(t.TempDir(), "meta.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := repos.NewStore(db, model.DatasourceSQLite, repos.NewSQLScanner(), logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewLockService(repos.NewLocksRepository(store), ttl, logger.NewTestLogger())
	svc.now = c.Now

	return svc, c
}

func TestLockService_TwoUserSequence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newLockService(t, 5*time.Minute)

	a := model.Actor{UserID: 1, Role: model.RoleUser}
	b := model.Actor{UserID: 2, Role: model.RoleUser}

	steps := []struct {
		name   string
		actor  model.Actor
		unlock bool
		expect bool
	}{
		{name: "a locks a free row", actor: a, expect: true},
		{name: "b is refused", actor: b, expect: false},
		{name: "a refreshes", actor: a, expect: true},
		{name: "b cannot unlock", actor: b, unlock: true},
		{name: "b is still refused", actor: b, expect: false},
		{name: "a unlocks", actor: a, unlock: true},
		{name: "b locks", actor: b, expect: true},
	}

	for _, step := range steps {
		if step.unlock {
			require.NoError(t, svc.UnlockRow(ctx, step.actor, 7, "42"), step.name)

			continue
		}

		acquired, err := svc.LockRow(ctx, step.actor, 7, "42")
		require.NoError(t, err, step.name)
		require.Equal(t, step.expect, acquired, step.name)
	}

	lock, err := svc.GetLock(ctx, 7, "42")
	require.NoError(t, err)
	require.NotNil(t, lock)
	require.Equal(t, b.UserID, lock.LockedBy)
}

func TestLockService_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, c := newLockService(t, time.Minute)

	a := model.Actor{UserID: 1}
	b := model.Actor{UserID: 2}

	acquired, err := svc.LockRow(ctx, a, 1, "1")
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = svc.LockRow(ctx, a, 1, "2")
	require.NoError(t, err)

	c.Advance(2 * time.Minute)

	lock, err := svc.GetLock(ctx, 1, "1")
	require.NoError(t, err)
	require.Nil(t, lock, "expired locks read as free")

	acquired, err = svc.LockRow(ctx, b, 1, "1")
	require.NoError(t, err)
	require.True(t, acquired, "an expired lock can be taken over")

	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	lock, err = svc.GetLock(ctx, 1, "1")
	require.NoError(t, err)
	require.NotNil(t, lock)
	require.Equal(t, b.UserID, lock.LockedBy)
}

func TestLockService_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, c := newLockService(t, 0)

	acquired, err := svc.LockRow(ctx, model.Actor{UserID: 1}, 1, "1")
	require.NoError(t, err)
	require.True(t, acquired)

	c.Advance(24 * time.Hour)

	acquired, err = svc.LockRow(ctx, model.Actor{UserID: 2}, 1, "1")
	require.NoError(t, err)
	require.False(t, acquired)

	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, purged)
}
