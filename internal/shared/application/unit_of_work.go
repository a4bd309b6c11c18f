package application

import "context"

// UnitOfWork scopes a group of repository calls to one database transaction.
// The transaction travels in the context returned by Begin.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork runs fn inside a transaction, rolling back when fn fails.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}

// WithUnitOfWorkResult is WithUnitOfWork for functions that produce a value.
// The zero value is returned whenever the transaction does not commit.
func WithUnitOfWorkResult[T any](ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero   T
		result T
	)
	err := WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		var err error
		result, err = fn(txCtx)
		return err
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}
