package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Tx is a request-scoped handle for writes that must commit together.
type Tx struct {
	store *Store
	tx    *sql.Tx
	now   func() time.Time
}

// TxOption customizes a transaction handle.
type TxOption func(*Tx)

// WithRecordClock overrides the clock used for created_at and recorded_at.
func WithRecordClock(now func() time.Time) TxOption {
	return func(t *Tx) {
		if now != nil {
			t.now = now
		}
	}
}

// InTx runs fn inside a single database transaction. fn's error rolls the
// transaction back and is returned unchanged. When SQLite reports the
// database busy, the whole transaction is retried with backoff, so fn must
// not keep side effects outside the transaction.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error, opts ...TxOption) error {
	if s == nil || s.db == nil {
		return errors.New("store unavailable")
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		handle := &Tx{store: s, tx: sqlTx, now: time.Now}
		for _, opt := range opts {
			opt(handle)
		}
		if err := fn(handle); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func (t *Tx) q() querier {
	return t.tx
}
