package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoTransaction is returned by Commit and Rollback when the context carries no transaction.
var ErrNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// TxInfo holds the Postgres transaction in context and whether this scope opened it.
type TxInfo struct {
	Tx    pgx.Tx
	Owned bool
}

// WithTx stores transaction info in the context.
func WithTx(ctx context.Context, tx pgx.Tx, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxInfoFromContext extracts transaction info from the context.
func TxInfoFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return TxInfo{}, false
	}
	return info, true
}

// DBExecutor is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor returns the transaction in ctx when present, otherwise the pool.
func Executor(ctx context.Context, pool *pgxpool.Pool) DBExecutor {
	if info, ok := TxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return pool
}

// InTx runs fn inside the transaction already in ctx, or inside a new one
// that is committed when fn succeeds.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	if info, ok := TxInfoFromContext(ctx); ok {
		return fn(info.Tx)
	}
	return pgx.BeginFunc(ctx, pool, fn)
}

// PostgresUnitOfWork opens at most one transaction per context chain.
type PostgresUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewPostgresUnitOfWork creates a new PostgresUnitOfWork.
func NewPostgresUnitOfWork(pool *pgxpool.Pool) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{pool: pool}
}

// Begin starts a transaction, or joins the one already in ctx.
func (u *PostgresUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if info, ok := TxInfoFromContext(ctx); ok {
		return WithTx(ctx, info.Tx, false), nil
	}

	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return WithTx(ctx, tx, true), nil
}

// Commit commits the transaction if this scope owns it.
func (u *PostgresUnitOfWork) Commit(ctx context.Context) error {
	info, ok := TxInfoFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !info.Owned {
		return nil
	}
	return info.Tx.Commit(ctx)
}

// Rollback rolls back the transaction if this scope owns it.
func (u *PostgresUnitOfWork) Rollback(ctx context.Context) error {
	info, ok := TxInfoFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !info.Owned {
		return nil
	}
	return info.Tx.Rollback(ctx)
}
