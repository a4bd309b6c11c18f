package persistence

import (
	"context"
	"database/sql"
)

type sqliteTxKey struct{}

// SQLiteTxInfo holds the SQLite transaction in context and whether this scope opened it.
type SQLiteTxInfo struct {
	Tx    *sql.Tx
	Owned bool
}

// WithSQLiteTx stores SQLite transaction info in the context.
func WithSQLiteTx(ctx context.Context, tx *sql.Tx, owned bool) context.Context {
	return context.WithValue(ctx, sqliteTxKey{}, SQLiteTxInfo{Tx: tx, Owned: owned})
}

// SQLiteTxInfoFromContext extracts SQLite transaction info from the context.
func SQLiteTxInfoFromContext(ctx context.Context) (SQLiteTxInfo, bool) {
	info, ok := ctx.Value(sqliteTxKey{}).(SQLiteTxInfo)
	if !ok || info.Tx == nil {
		return SQLiteTxInfo{}, false
	}
	return info, true
}

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteExecutor returns the transaction in ctx when present, otherwise db.
func SQLiteExecutor(ctx context.Context, db *sql.DB) SQLExecutor {
	if info, ok := SQLiteTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return db
}

// InSQLiteTx runs fn inside the transaction already in ctx, or inside a new one
// that is committed when fn succeeds. Repositories use it for multi-statement writes.
func InSQLiteTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	if info, ok := SQLiteTxInfoFromContext(ctx); ok {
		return fn(info.Tx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SQLiteUnitOfWork opens at most one transaction per context chain.
type SQLiteUnitOfWork struct {
	db *sql.DB
}

// NewSQLiteUnitOfWork creates a new SQLiteUnitOfWork.
func NewSQLiteUnitOfWork(db *sql.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: db}
}

// Begin starts a transaction, or joins the one already in ctx.
func (u *SQLiteUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if info, ok := SQLiteTxInfoFromContext(ctx); ok {
		return WithSQLiteTx(ctx, info.Tx, false), nil
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return WithSQLiteTx(ctx, tx, true), nil
}

// Commit commits the transaction if this scope owns it.
func (u *SQLiteUnitOfWork) Commit(ctx context.Context) error {
	info, ok := SQLiteTxInfoFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !info.Owned {
		return nil
	}
	return info.Tx.Commit()
}

// Rollback rolls back the transaction if this scope owns it.
func (u *SQLiteUnitOfWork) Rollback(ctx context.Context) error {
	info, ok := SQLiteTxInfoFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !info.Owned {
		return nil
	}
	return info.Tx.Rollback()
}
