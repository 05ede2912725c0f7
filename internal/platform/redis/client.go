// Package redis connects the shared verdict cache to Redis and exports the
// connection pool as Prometheus metrics.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"pixellocker/internal/platform/config"
)

const defaultPingTimeout = 10 * time.Second

// ErrNotConfigured is returned by New when no Redis URL is set.
var ErrNotConfigured = errors.New("redis url not configured")

type poolCollectors struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	timeouts prometheus.Counter
	stale    prometheus.Counter
	total    prometheus.Gauge
	idle     prometheus.Gauge
}

func newPoolCollectors(reg prometheus.Registerer) *poolCollectors {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Name: "pixellocker_redis_pool_" + name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Name: "pixellocker_redis_pool_" + name, Help: help})
	}
	return &poolCollectors{
		hits:     counter("hits_total", "Verdict cache connections reused from the pool"),
		misses:   counter("misses_total", "Verdict cache connections dialed because the pool had none free"),
		timeouts: counter("timeouts_total", "Verdict cache connection requests that timed out waiting on the pool"),
		stale:    counter("stale_conns_total", "Stale verdict cache connections evicted from the pool"),
		total:    gauge("total_conns", "Open verdict cache connections"),
		idle:     gauge("idle_conns", "Idle verdict cache connections"),
	}
}

var defaultPoolCollectors = sync.OnceValue(func() *poolCollectors {
	return newPoolCollectors(prometheus.DefaultRegisterer)
})

// Client is a pinged go-redis client whose pool statistics feed Prometheus.
type Client struct {
	*redis.Client
	collectors *poolCollectors
	prev       redis.PoolStats
}

// New parses cfg.URL, applies the non-zero pool settings and pings the server
// before returning.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNotConfigured
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	applyPoolSettings(opts, cfg)

	client := redis.NewClient(opts)
	pingTimeout := 2 * opts.DialTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis at %s: %w", opts.Addr, err), client.Close())
	}
	return &Client{Client: client, collectors: defaultPoolCollectors()}, nil
}

// applyPoolSettings keeps the go-redis defaults for zero values.
func applyPoolSettings(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats publishes the pool gauges and the counter deltas since the
// previous call.
func (c *Client) RecordPoolStats() {
	c.record(*c.PoolStats())
}

func (c *Client) record(stats redis.PoolStats) {
	m := c.collectors
	m.total.Set(float64(stats.TotalConns))
	m.idle.Set(float64(stats.IdleConns))
	m.hits.Add(delta(stats.Hits, c.prev.Hits))
	m.misses.Add(delta(stats.Misses, c.prev.Misses))
	m.timeouts.Add(delta(stats.Timeouts, c.prev.Timeouts))
	m.stale.Add(delta(stats.StaleConns, c.prev.StaleConns))
	c.prev = stats
}

func delta(cur, prev uint32) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}
