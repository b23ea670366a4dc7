//go:build integration

package itest

import (
	"context"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/internal/adapters/repos"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/stretchr/testify/suite"
)

type MetadataStoreIntegrationTestSuite struct {
	suite.Suite

	start func(*testing.T, context.Context) string

	ctx         context.Context
	cancel      context.CancelFunc
	closeDB     func() error
	users       *repos.UsersRepository
	permissions *repos.PermissionsRepository
	locks       *repos.LocksRepository
	changelog   *repos.ChangelogRepository
	catalog     *repos.CatalogRepository
}

func TestMetadataStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Run("postgresql", func(t *testing.T) {
		suite.Run(t, &MetadataStoreIntegrationTestSuite{start: startPostgres})
	})

	t.Run("mysql", func(t *testing.T) {
		suite.Run(t, &MetadataStoreIntegrationTestSuite{start: startMySQL})
	})
}

func (s *MetadataStoreIntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)

	cfg, err := model.ParseConnectionString(s.start(s.T(), s.ctx))
	s.Require().NoError(err)

	db, closeDB, err := infrastructure.OpenMetadataDB(s.ctx, cfg, testPool)
	s.Require().NoError(err)
	s.closeDB = closeDB

	store, err := repos.NewStore(db, cfg.Type, repos.NewSQLScanner(), logger.NewTestLogger())
	s.Require().NoError(err)
	s.Require().NoError(store.Migrate(s.ctx))
	s.Require().NoError(store.Migrate(s.ctx), "migrations must be re-runnable")

	s.users = repos.NewUsersRepository(store)
	s.permissions = repos.NewPermissionsRepository(store)
	s.locks = repos.NewLocksRepository(store)
	s.changelog = repos.NewChangelogRepository(store)
	s.catalog = repos.NewCatalogRepository(store)
}

func (s *MetadataStoreIntegrationTestSuite) TearDownSuite() {
	if s.closeDB != nil {
		_ = s.closeDB()
	}

	if s.cancel != nil {
		s.cancel()
	}
}

func (s *MetadataStoreIntegrationTestSuite) TestUsersAndPermissions() {
	id, err := s.users.Create(s.ctx, model.User{
		Name:         "Ann",
		Email:        "ann@example.com",
		PasswordHash: "hash",
		Role:         model.RoleUser,
	})
	s.Require().NoError(err)

	_, err = s.users.Create(s.ctx, model.User{Name: "Ann 2", Email: "ann@example.com", PasswordHash: "hash", Role: model.RoleUser})
	s.Require().ErrorIs(err, model.ErrDuplicateUser)

	user, err := s.users.GetByEmail(s.ctx, "ann@example.com")
	s.Require().NoError(err)
	s.Equal(id, user.ID)

	dbID, err := s.catalog.CreateDatabase(s.ctx, model.DBConfig{Name: "crm", ConStr: "sqlite:///crm.db", OwnerID: id})
	s.Require().NoError(err)

	tableID, err := s.catalog.CreateTable(s.ctx, model.TableMeta{DBID: dbID, TableName: "people"})
	s.Require().NoError(err)

	s.Require().NoError(s.permissions.Upsert(s.ctx, model.Permission{UserID: id, TableID: tableID, CanRead: true}))
	s.Require().NoError(s.permissions.Upsert(s.ctx, model.Permission{UserID: id, TableID: tableID, CanRead: true, CanWrite: true}))

	perm, ok, err := s.permissions.Get(s.ctx, id, tableID)
	s.Require().NoError(err)
	s.True(ok)
	s.True(perm.CanWrite, "upsert replaces the previous grant")

	readable, err := s.catalog.ListReadableTables(s.ctx, id)
	s.Require().NoError(err)
	s.Len(readable, 1)
}

func (s *MetadataStoreIntegrationTestSuite) TestLockLifecycle() {
	t0 := time.Now().UTC().Truncate(time.Second)
	ttl := 5 * time.Minute

	acquire := func(userID int64, at time.Time) bool {
		ok, err := s.locks.Acquire(s.ctx, model.RowLock{TableID: 7, RowPK: "42", LockedBy: userID, LockedAt: at}, ttl)
		s.Require().NoError(err)

		return ok
	}

	s.True(acquire(1, t0), "free row")
	s.True(acquire(1, t0.Add(time.Minute)), "holder refreshes")
	s.False(acquire(2, t0.Add(2*time.Minute)), "live lock blocks others")
	s.True(acquire(2, t0.Add(time.Hour)), "expired lock is taken over")

	s.Require().NoError(s.locks.Release(s.ctx, 7, "42", 1))

	lock, err := s.locks.Get(s.ctx, 7, "42")
	s.Require().NoError(err)
	s.Require().NotNil(lock)
	s.Equal(int64(2), lock.LockedBy, "only the holder can release")

	purged, err := s.locks.PurgeExpired(s.ctx, t0.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), purged)
}

func (s *MetadataStoreIntegrationTestSuite) TestLockContenderWithSameTimestampIsDenied() {
	at := time.Now().UTC().Truncate(time.Microsecond)

	for _, ttl := range []time.Duration{0, time.Minute} {
		rowPK := "same-" + ttl.String()

		ok, err := s.locks.Acquire(s.ctx, model.RowLock{TableID: 8, RowPK: rowPK, LockedBy: 1, LockedAt: at}, ttl)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.locks.Acquire(s.ctx, model.RowLock{TableID: 8, RowPK: rowPK, LockedBy: 2, LockedAt: at}, ttl)
		s.Require().NoError(err)
		s.False(ok, "ttl %s", ttl)

		lock, err := s.locks.Get(s.ctx, 8, rowPK)
		s.Require().NoError(err)
		s.Require().NotNil(lock)
		s.Equal(int64(1), lock.LockedBy)
		s.True(at.Equal(lock.LockedAt))
	}
}

func (s *MetadataStoreIntegrationTestSuite) TestChangelog() {
	id, err := s.users.Create(s.ctx, model.User{Name: "Ben", Email: "ben@example.com", PasswordHash: "hash", Role: model.RoleAdmin})
	s.Require().NoError(err)

	old, updated := "NYC", "SEA"

	s.Require().NoError(s.changelog.Append(s.ctx,
		model.ChangelogEntry{TableID: 3, RowPK: "1", ColumnName: "city", OldValue: &old, NewValue: &updated, ModifiedBy: id, ModifiedAt: time.Now().UTC()},
		model.ChangelogEntry{TableID: 3, RowPK: "2", ColumnName: "city", NewValue: &updated, ModifiedBy: id, ModifiedAt: time.Now().UTC()},
	))

	entries, err := s.changelog.ListByRow(s.ctx, 3, "1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("Ben", entries[0].UserName)
	s.Equal("NYC", *entries[0].OldValue)

	cleared, err := s.changelog.ClearTable(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(int64(2), cleared)
}
