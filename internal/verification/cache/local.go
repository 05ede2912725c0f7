package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"pixellocker/internal/verification/models"
)

const (
	defaultMaxCost     = 1e4
	defaultBufferItems = 64
)

// LocalCache is an in-process cache. Concurrent misses on one key share a single load.
type LocalCache struct {
	cache *ristretto.Cache[string, models.Resolution]
	ttl   time.Duration
	sfg   singleflight.Group
}

// NewLocalCache holds up to maxEntries resolutions for ttl each.
// A non-positive maxEntries uses the default capacity.
func NewLocalCache(ttl time.Duration, maxEntries int64) (*LocalCache, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxCost
	}
	// Cost counts entries, not bytes.
	c, err := ristretto.NewCache(&ristretto.Config[string, models.Resolution]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        defaultBufferItems,
		IgnoreInternalCost: true,
		Cost: func(models.Resolution) int64 {
			return 1
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create local verdict cache: %w", err)
	}
	return &LocalCache{cache: c, ttl: ttl}, nil
}

func (c *LocalCache) GetOrLoad(ctx context.Context, key string, load Loader) (*models.Resolution, bool, error) {
	if value, ok := c.cache.Get(key); ok {
		return &value, true, nil
	}

	res, err, _ := c.sfg.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.SetWithTTL(key, *loaded, 0, c.ttl)
		c.cache.Wait()
		return loaded, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := *res.(*models.Resolution)
	return &out, false, nil
}

func (c *LocalCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.sfg.Forget(key)
		c.cache.Del(key)
	}
	return nil
}

// Close stops the cache's background goroutines.
func (c *LocalCache) Close() {
	c.cache.Close()
}

var _ Cache = (*LocalCache)(nil)
