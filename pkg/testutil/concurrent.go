package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	dErrors "pixellocker/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes      int32
	Conflicts      int32 // conflict: e.g. duplicate credential id
	AlreadyRevoked int32
	NotFounds      int32
	Errors         int32 // anything else
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.AlreadyRevoked + r.NotFounds + r.Errors
}

// RunConcurrent runs fn in parallel goroutines and buckets the outcomes by domain code.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg                                        sync.WaitGroup
		successes, conflicts, revoked, nf, others atomic.Int32
	)

	for i := range goroutines {
		wg.Go(func() {
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			case dErrors.HasCode(err, dErrors.CodeAlreadyRevoked):
				revoked.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				nf.Add(1)
			default:
				others.Add(1)
			}
		})
	}
	wg.Wait()

	return &ConcurrentResult{
		Successes:      successes.Load(),
		Conflicts:      conflicts.Load(),
		AlreadyRevoked: revoked.Load(),
		NotFounds:      nf.Load(),
		Errors:         others.Load(),
	}
}

// RunConcurrentCtx is RunConcurrent with a shared context.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
