package sync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pixellocker/pkg/domain-errors"
)

type counterScope struct {
	n *int
}

func TestShardedTx_RunInTx(t *testing.T) {
	t.Run("passes scope and returns fn error", func(t *testing.T) {
		n := 0
		tx := NewShardedTx(counterScope{n: &n}, 0)
		sentinel := errors.New("boom")

		err := tx.RunInTx(context.Background(), "k", func(ctx context.Context, s counterScope) error {
			*s.n++
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "default timeout should be applied")
			return sentinel
		})

		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, n)
	})

	t.Run("cancelled context never runs fn", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := NewShardedTx(counterScope{}, 0).RunInTx(ctx, "k", func(context.Context, counterScope) error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.False(t, called)
	})

	t.Run("same key serialises read-modify-write", func(t *testing.T) {
		n := 0
		tx := NewShardedTx(counterScope{n: &n}, 0)
		var wg sync.WaitGroup
		for range 50 {
			wg.Go(func() {
				_ = tx.RunInTx(context.Background(), "cred-1", func(_ context.Context, s counterScope) error {
					v := *s.n
					*s.n = v + 1
					return nil
				})
			})
		}
		wg.Wait()
		assert.Equal(t, 50, n)
	})
}
