package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"pixellocker/internal/verification/models"
	"pixellocker/pkg/platform/circuit"
)

const redisKeyPrefix = "verification:resolution:"

// ErrUnavailable is returned by Delete while the breaker bypasses Redis.
var ErrUnavailable = errors.New("verdict cache unavailable")

// RedisCache shares resolutions across instances. Redis failures degrade to a
// direct load, and a run of failures opens the breaker so requests stop
// waiting on Redis until a probe succeeds.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	breaker *circuit.Breaker
	sfg     singleflight.Group
}

type RedisOption func(*RedisCache)

func WithBreaker(b *circuit.Breaker) RedisOption {
	return func(c *RedisCache) {
		if b != nil {
			c.breaker = b
		}
	}
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger, opts ...RedisOption) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &RedisCache{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		breaker: circuit.New("verdict_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) GetOrLoad(ctx context.Context, key string, load Loader) (*models.Resolution, bool, error) {
	redisKey := redisKeyPrefix + key
	useRedis := c.breaker.Allow()
	if useRedis {
		data, err := c.client.Get(ctx, redisKey).Bytes()
		switch {
		case err == nil:
			c.recordSuccess(ctx)
			var res models.Resolution
			if decodeErr := json.Unmarshal(data, &res); decodeErr == nil {
				return &res, true, nil
			}
			c.logger.WarnContext(ctx, "discarding undecodable verdict cache entry", "key", redisKey)
		case errors.Is(err, redis.Nil):
			c.recordSuccess(ctx)
		default:
			c.logger.WarnContext(ctx, "verdict cache read failed", "key", redisKey, "error", err)
			c.recordFailure(ctx, err)
			useRedis = false
		}
	}

	res, err, _ := c.sfg.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if !useRedis {
			return loaded, nil
		}
		payload, err := json.Marshal(loaded)
		if err == nil {
			err = c.client.Set(ctx, redisKey, payload, c.ttl).Err()
		}
		if err != nil {
			c.logger.WarnContext(ctx, "verdict cache write failed", "key", redisKey, "error", err)
			c.recordFailure(ctx, err)
		}
		return loaded, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := *res.(*models.Resolution)
	return &out, false, nil
}

// Delete fails while the breaker is open; the entries then expire with their TTL.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if !c.breaker.Allow() {
		return ErrUnavailable
	}
	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = redisKeyPrefix + key
		c.sfg.Forget(key)
	}
	if err := c.client.Del(ctx, redisKeys...).Err(); err != nil {
		c.recordFailure(ctx, err)
		return fmt.Errorf("delete verdict cache keys: %w", err)
	}
	c.recordSuccess(ctx)
	return nil
}

func (c *RedisCache) recordSuccess(ctx context.Context) {
	if c.breaker.Success() {
		c.logger.InfoContext(ctx, "circuit breaker closed", "circuit", c.breaker.Name())
	}
}

func (c *RedisCache) recordFailure(ctx context.Context, err error) {
	if c.breaker.Failure() {
		c.logger.ErrorContext(ctx, "circuit breaker opened", "circuit", c.breaker.Name(), "error", err)
	}
}

// BreakerState reports whether Redis is currently being bypassed.
func (c *RedisCache) BreakerState() circuit.State {
	return c.breaker.State()
}

var _ Cache = (*RedisCache)(nil)
