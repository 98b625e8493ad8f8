package diag

import (
	"context"
	"database/sql"
	"fmt"
)

type writeOp struct {
	ctx    context.Context
	apply  func(ctx context.Context, tx *sql.Tx) error
	result chan error
}

// WriteQueue funnels every journal mutation through one goroutine and
// one transaction at a time. The database runs a single connection, so
// concurrent cycle appends, fault appends, and retention prunes would
// otherwise contend on it mid-transaction.
type WriteQueue struct {
	db      *sql.DB
	ops     chan writeOp
	drained chan struct{}
}

func NewWriteQueue(db *sql.DB) *WriteQueue {
	q := &WriteQueue{
		db:      db,
		ops:     make(chan writeOp, 256),
		drained: make(chan struct{}),
	}
	go q.run()
	return q
}

// Close stops accepting mutations and waits for the queue to drain.
func (q *WriteQueue) Close() {
	close(q.ops)
	<-q.drained
}

// Do runs apply inside its own transaction on the queue goroutine. The
// caller's context bounds both the wait for a queue slot and the wait
// for the result; an op whose context expired before execution is
// answered with the context error without touching the database.
func (q *WriteQueue) Do(ctx context.Context, apply func(ctx context.Context, tx *sql.Tx) error) error {
	op := writeOp{ctx: ctx, apply: apply, result: make(chan error, 1)}

	select {
	case q.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	}

	// The queue goroutine always answers on result; if the caller gives
	// up first the buffered channel absorbs the late answer.
	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriteQueue) run() {
	defer close(q.drained)

	for op := range q.ops {
		if err := op.ctx.Err(); err != nil {
			op.result <- err
			continue
		}

		tx, err := q.db.BeginTx(op.ctx, nil)
		if err != nil {
			op.result <- fmt.Errorf("journal begin: %w", err)
			continue
		}
		if err := op.apply(op.ctx, tx); err != nil {
			_ = tx.Rollback()
			op.result <- err
			continue
		}
		if err := tx.Commit(); err != nil {
			op.result <- fmt.Errorf("journal commit: %w", err)
			continue
		}
		op.result <- nil
	}
}
