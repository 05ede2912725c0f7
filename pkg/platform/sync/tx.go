package sync

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "pixellocker/pkg/domain-errors"
)

var (
	shardLockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pixellocker_shard_lock_wait_seconds",
		Help:    "Time spent waiting to acquire an in-memory transaction shard",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	shardLockAcquisitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixellocker_shard_lock_acquisitions_total",
		Help: "Total number of in-memory transaction shard acquisitions",
	})
)

const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory transaction boundary: mutations sharing a key
// are serialised, mutations on different keys proceed in parallel.
// It provides isolation but not rollback, so callers perform every fallible
// check before their first write.
type ShardedTx[T any] struct {
	mu      *ShardedMutex
	scope   T
	timeout time.Duration
}

// NewShardedTx builds a runner over scope. A zero timeout uses five seconds.
func NewShardedTx[T any](scope T, timeout time.Duration) *ShardedTx[T] {
	return &ShardedTx[T]{mu: NewShardedMutex(), scope: scope, timeout: timeout}
}

func (t *ShardedTx[T]) RunInTx(ctx context.Context, key string, fn func(ctx context.Context, scope T) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lockStart := time.Now()
	t.mu.Lock(key)
	shardLockWaitDuration.Observe(time.Since(lockStart).Seconds())
	shardLockAcquisitions.Inc()
	defer t.mu.Unlock(key)

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.scope)
}
