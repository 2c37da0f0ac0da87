package sdb

import (
	"context"
	"log/slog"
)

// txConn is the slice of Connection a transaction guard needs.
type txConn interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Tx is a scoped transaction guard. A guard that reaches Close while
// still armed rolls the transaction back, so the idiomatic shape is:
//
//	tx, err := sdb.Begin(ctx, conn)
//	if err != nil { ... }
//	defer tx.Close()
//	// ... statements on conn ...
//	if err := tx.Commit(ctx); err != nil { ... }
//
// Tx is not safe for concurrent use, matching the connection that
// created it.
type Tx struct {
	conn txConn

	// armed is true while the transaction is open and unresolved.
	armed bool
}

// Begin starts a transaction on conn and returns its guard, armed.
func Begin(ctx context.Context, conn txConn) (*Tx, error) {
	if err := conn.Begin(ctx); err != nil {
		e := AsError(err)
		emitError(ctx, "tx.begin", e)
		return nil, e
	}
	return &Tx{conn: conn, armed: true}, nil
}

// Commit makes the transaction's effects permanent and disarms the
// guard. On failure the guard stays armed, so a deferred Close still
// rolls back.
func (t *Tx) Commit(ctx context.Context) error {
	if !t.armed {
		return Errorf(KindTransaction, "transaction already resolved")
	}
	if err := t.conn.Commit(ctx); err != nil {
		e := AsError(err)
		emitError(ctx, "tx.commit", e)
		return e
	}
	t.armed = false
	return nil
}

// Rollback discards the transaction's effects and disarms the guard.
// On failure the guard stays armed.
func (t *Tx) Rollback(ctx context.Context) error {
	if !t.armed {
		return Errorf(KindTransaction, "transaction already resolved")
	}
	if err := t.conn.Rollback(ctx); err != nil {
		e := AsError(err)
		emitError(ctx, "tx.rollback", e)
		return e
	}
	t.armed = false
	return nil
}

// Active reports whether the transaction is still open and unresolved.
func (t *Tx) Active() bool {
	return t.armed
}

// Close rolls the transaction back when it is still armed. Intended
// for defer; errors from the implicit rollback are logged, not
// returned, because a deferred Close has no caller to hand them to.
// Idempotent.
func (t *Tx) Close() {
	if !t.armed {
		return
	}
	t.armed = false
	ctx := context.Background()
	if err := t.conn.Rollback(ctx); err != nil {
		emitEvent(ctx, slog.LevelWarn, "tx.close",
			"implicit rollback failed", "error", err.Error())
	}
}
