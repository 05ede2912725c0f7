package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixellocker/internal/verification/models"
)

func newLocal(t *testing.T, ttl time.Duration) *LocalCache {
	t.Helper()
	c, err := NewLocalCache(ttl, 100)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestLocalCache_HitAfterLoad(t *testing.T) {
	c := newLocal(t, time.Minute)
	ctx := context.Background()
	var calls int
	load := func(context.Context) (*models.Resolution, error) {
		calls++
		return &models.Resolution{CredentialID: "cred-1", Status: models.OnChainActive, Height: 3}, nil
	}

	first, hit, err := c.GetOrLoad(ctx, "id:cred-1:0", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.OnChainActive, first.Status)

	second, hit, err := c.GetOrLoad(ctx, "id:cred-1:0", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	second.Status = models.OnChainRevoked
	third, _, err := c.GetOrLoad(ctx, "id:cred-1:0", load)
	require.NoError(t, err)
	assert.Equal(t, models.OnChainActive, third.Status, "callers get copies")
}

func TestLocalCache_LoadErrorsAreNotCached(t *testing.T) {
	c := newLocal(t, time.Minute)
	ctx := context.Background()
	boom := errors.New("ledger unavailable")

	_, _, err := c.GetOrLoad(ctx, "k", func(context.Context) (*models.Resolution, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	res, hit, err := c.GetOrLoad(ctx, "k", func(context.Context) (*models.Resolution, error) {
		return &models.Resolution{Status: models.OnChainNotFound}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.OnChainNotFound, res.Status)
}

func TestLocalCache_EntriesExpire(t *testing.T) {
	c := newLocal(t, 50*time.Millisecond)
	ctx := context.Background()
	load := func(context.Context) (*models.Resolution, error) {
		return &models.Resolution{Status: models.OnChainActive}, nil
	}

	_, _, err := c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, hit, err := c.GetOrLoad(ctx, "k", load)
		return err == nil && !hit
	}, 2*time.Second, 25*time.Millisecond)
}

func TestLocalCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	c := newLocal(t, time.Minute)
	var calls atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup

	for range 20 {
		wg.Go(func() {
			<-start
			_, _, err := c.GetOrLoad(context.Background(), "hot", func(context.Context) (*models.Resolution, error) {
				calls.Add(1)
				time.Sleep(100 * time.Millisecond)
				return &models.Resolution{Status: models.OnChainActive}, nil
			})
			assert.NoError(t, err)
		})
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestLocalCache_DeleteForcesReload(t *testing.T) {
	c := newLocal(t, time.Minute)
	ctx := context.Background()
	status := models.OnChainActive
	load := func(context.Context) (*models.Resolution, error) {
		return &models.Resolution{CredentialID: "cred-1", Status: status}, nil
	}

	_, _, err := c.GetOrLoad(ctx, "id:cred-1", load)
	require.NoError(t, err)

	status = models.OnChainRevoked
	require.NoError(t, c.Delete(ctx, "id:cred-1", "hash:never-cached"))

	res, hit, err := c.GetOrLoad(ctx, "id:cred-1", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.OnChainRevoked, res.Status)
}
