//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pixellocker/internal/verification/models"
	"pixellocker/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = NewRedisCache(s.redis.Client, time.Second, nil)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (*models.Resolution, error) {
		calls++
		return &models.Resolution{CredentialID: "cred-1", Status: models.OnChainRevoked, Height: 9}, nil
	}

	_, hit, err := s.cache.GetOrLoad(ctx, "id:cred-1:0", load)
	s.Require().NoError(err)
	s.False(hit)

	res, hit, err := s.cache.GetOrLoad(ctx, "id:cred-1:0", load)
	s.Require().NoError(err)
	s.True(hit)
	s.Equal(&models.Resolution{CredentialID: "cred-1", Status: models.OnChainRevoked, Height: 9}, res)
	s.Equal(1, calls)

	ttl, err := s.redis.Client.TTL(ctx, redisKeyPrefix+"id:cred-1:0").Result()
	s.Require().NoError(err)
	s.LessOrEqual(ttl, time.Second)
}

func (s *RedisCacheSuite) TestDeleteEvictsEntries() {
	ctx := context.Background()
	status := models.OnChainActive
	load := func(context.Context) (*models.Resolution, error) {
		return &models.Resolution{CredentialID: "cred-2", Status: status}, nil
	}

	_, _, err := s.cache.GetOrLoad(ctx, "id:cred-2", load)
	s.Require().NoError(err)
	_, _, err = s.cache.GetOrLoad(ctx, "hash:ipfs://doc-2", load)
	s.Require().NoError(err)

	status = models.OnChainRevoked
	s.Require().NoError(s.cache.Delete(ctx, "id:cred-2", "hash:ipfs://doc-2"))

	n, err := s.redis.Client.Exists(ctx, redisKeyPrefix+"id:cred-2", redisKeyPrefix+"hash:ipfs://doc-2").Result()
	s.Require().NoError(err)
	s.Zero(n)

	res, hit, err := s.cache.GetOrLoad(ctx, "id:cred-2", load)
	s.Require().NoError(err)
	s.False(hit)
	s.Equal(models.OnChainRevoked, res.Status)
}

func (s *RedisCacheSuite) TestCorruptEntryIsReloaded() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, redisKeyPrefix+"k", "{", time.Minute).Err())

	res, hit, err := s.cache.GetOrLoad(ctx, "k", func(context.Context) (*models.Resolution, error) {
		return &models.Resolution{Status: models.OnChainNotFound}, nil
	})
	s.Require().NoError(err)
	s.False(hit)
	s.Equal(models.OnChainNotFound, res.Status)
}
