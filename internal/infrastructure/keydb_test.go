package infrastructure_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type KeyDBClientTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *infrastructure.KeydbClient
	ctx       context.Context
}

func TestKeyDBClientTestSuite(t *testing.T) {
	suite.Run(t, new(KeyDBClientTestSuite))
}

func (s *KeyDBClientTestSuite) SetupTest() {
	s.miniRedis = miniredis.RunT(s.T())
	s.ctx = context.Background()

	s.client = infrastructure.NewKeyDBClientFrom(
		redis.NewClient(&redis.Options{Addr: s.miniRedis.Addr()}),
		logger.NewTestLogger(),
	)
}

func (s *KeyDBClientTestSuite) TearDownTest() {
	s.Require().NoError(s.client.Close())
}

func (s *KeyDBClientTestSuite) TestGetSetDelete() {
	_, err := s.client.Get(s.ctx, "missing")
	s.Require().True(errors.Is(err, redis.Nil))

	s.Require().NoError(s.client.Set(s.ctx, "k", []byte("v"), time.Minute))

	value, err := s.client.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("v", string(value))

	s.Require().NoError(s.client.Delete(s.ctx, "k"))

	_, err = s.client.Get(s.ctx, "k")
	s.True(errors.Is(err, redis.Nil))
}

func (s *KeyDBClientTestSuite) TestClaims() {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	acquired, err := s.client.AcquireOrRefresh(s.ctx, "row", "1", since, time.Minute)
	s.Require().NoError(err)
	s.True(acquired)

	acquired, err = s.client.AcquireOrRefresh(s.ctx, "row", "2", since, time.Minute)
	s.Require().NoError(err)
	s.False(acquired, "another holder must be rejected")

	later := since.Add(time.Second)

	acquired, err = s.client.AcquireOrRefresh(s.ctx, "row", "1", later, time.Minute)
	s.Require().NoError(err)
	s.True(acquired, "the holder may refresh")

	claim, err := s.client.GetClaim(s.ctx, "row")
	s.Require().NoError(err)
	s.Require().NotNil(claim)
	s.Equal("1", claim.Holder)
	s.True(later.Equal(claim.Since))

	released, err := s.client.CompareAndDelete(s.ctx, "row", "2")
	s.Require().NoError(err)
	s.False(released)

	released, err = s.client.CompareAndDelete(s.ctx, "row", "1")
	s.Require().NoError(err)
	s.True(released)

	claim, err = s.client.GetClaim(s.ctx, "row")
	s.Require().NoError(err)
	s.Nil(claim)
}

func (s *KeyDBClientTestSuite) TestClaimExpires() {
	acquired, err := s.client.AcquireOrRefresh(s.ctx, "row", "1", time.Now(), time.Minute)
	s.Require().NoError(err)
	s.True(acquired)

	ttl, err := s.client.TTL(s.ctx, "row")
	s.Require().NoError(err)
	s.InDelta(time.Minute.Seconds(), ttl.Seconds(), 1)

	s.miniRedis.FastForward(2 * time.Minute)

	acquired, err = s.client.AcquireOrRefresh(s.ctx, "row", "2", time.Now(), time.Minute)
	s.Require().NoError(err)
	s.True(acquired)
}

func (s *KeyDBClientTestSuite) TestClaimWithoutExpiry() {
	acquired, err := s.client.AcquireOrRefresh(s.ctx, "row", "1", time.Now(), 0)
	s.Require().NoError(err)
	s.True(acquired)

	ttl, err := s.client.TTL(s.ctx, "row")
	s.Require().NoError(err)
	s.Negative(ttl)
}
