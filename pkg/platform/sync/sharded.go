package sync

import (
	"slices"
	"sync"
)

const shardCount = 32

// ShardedMutex serializes work per key without a global lock.
// Keys are spread across a fixed set of shards; two keys that land in the
// same shard serialize, which is safe but may add contention.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// NewShardedMutex creates a ShardedMutex with 32 shards.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the shard for key. Empty keys use shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the shard for key.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// LockKeys acquires the shards of every key and returns a function releasing them.
// Shards are taken in ascending order so overlapping key sets cannot deadlock.
func (m *ShardedMutex) LockKeys(keys ...string) (unlock func()) {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, m.shardFor(k))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		m.shards[i].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			m.shards[idx[i]].Unlock()
		}
	}
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % uint32(len(m.shards)))
}

// hashString is the base-31 polynomial hash (h = h*31 + c, zero seed), used
// only for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
