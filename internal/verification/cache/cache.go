// Package cache holds ledger resolutions for the verification path. Ledger
// mutations delete the affected keys after commit. An entry another process
// cached, or one whose load raced the mutation, lives until its TTL elapses,
// so callers needing read-your-writes pass a min ledger height, which
// bypasses the cache.
package cache

import (
	"context"

	"pixellocker/internal/verification/models"
)

// Loader produces a resolution on a cache miss.
type Loader func(ctx context.Context) (*models.Resolution, error)

// Cache returns the resolution stored under key, loading and storing it on a miss.
// The bool reports a hit. Loader errors are returned and never cached.
type Cache interface {
	GetOrLoad(ctx context.Context, key string, load Loader) (*models.Resolution, bool, error)
	// Delete drops keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
