package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dErrors "pixellocker/pkg/domain-errors"
)

// DefaultTxTimeout bounds a ledger transaction when the caller set no deadline.
const DefaultTxTimeout = 5 * time.Second

// TxRunner runs fn inside a database transaction and hands it a scope built
// from the transaction handle. T is the set of tx-bound stores a service needs.
type TxRunner[T any] struct {
	db      *sql.DB
	bind    func(tx DBTX) T
	timeout time.Duration
}

// NewTxRunner builds a runner. bind is called once per transaction.
func NewTxRunner[T any](db *sql.DB, timeout time.Duration, bind func(tx DBTX) T) *TxRunner[T] {
	return &TxRunner[T]{db: db, bind: bind, timeout: timeout}
}

// RunInTx commits when fn returns nil and rolls back otherwise.
// key is accepted for parity with in-memory runners; row locks provide isolation here.
func (r *TxRunner[T]) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context, scope T) error) error {
	ctx, cancel, err := withTxDeadline(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTxErr(ctx, err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
	}()

	if err := fn(ctx, r.bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapTxErr(ctx, err, "commit transaction")
	}
	return nil
}

// withTxDeadline applies the default timeout unless ctx already carries a deadline.
func withTxDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

func wrapTxErr(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": deadline exceeded")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
