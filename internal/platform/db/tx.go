package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by the pool, a transaction and a savepoint.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type txContextKey struct{}

// Manager carries the active transaction in context so that services
// composed inside one operation share a single transaction.
type Manager struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

// NewManager constructs a Manager. Posting runs in READ COMMITTED and
// relies on SELECT ... FOR UPDATE for the rows it mutates.
func NewManager(pool *pgxpool.Pool) *Manager {
	return &Manager{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// Pool exposes the underlying pool.
func (m *Manager) Pool() *pgxpool.Pool { return m.pool }

// Conn returns the transaction bound to ctx or the pool.
func (m *Manager) Conn(ctx context.Context) DBTX {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return m.pool
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return ok
}

// WithTx executes fn within a transaction. A transaction already carried by
// ctx is joined instead of starting a new one.
func (m *Manager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	return WithTx(ctx, m.pool, m.opts, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// Savepoint runs fn in a nested transaction. Its failure rolls back only
// the work done by fn.
func (m *Manager) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	if !ok {
		return m.WithTx(ctx, fn)
	}
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("platform/db: savepoint: %w", err)
	}
	if err := fn(context.WithValue(ctx, txContextKey{}, sp)); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: release savepoint: %w", err)
	}
	return nil
}

// WithTx executes a function within a transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
