// Package postgres - UnitOfWork implementation.
//
// Usage:
//
//	err := uow.Execute(ctx, func(txCtx context.Context) error {
//	    wallet, _ := walletRepo.FindByUserID(txCtx, userID)
//	    // mutate, then Save with txCtx
//	    return nil // COMMIT; any error ROLLBACKs
//	})
package postgres

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// Compile-time check
var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork runs functions inside PostgreSQL transactions, carrying the
// transaction through the context so repositories join it transparently.
type UnitOfWork struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

// NewUnitOfWork creates a UnitOfWork with READ COMMITTED isolation.
// The money invariants rely on optimistic locking, not isolation level.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{
		pool: pool,
		opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// Execute runs fn inside a transaction: nil commits, an error rolls back,
// a panic rolls back and re-panics. Nested calls join the outer transaction.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(context.Context) error) error {
	if hasTx(ctx) {
		// Already inside a transaction; PostgreSQL has no true nesting.
		return fn(ctx)
	}

	tx, err := u.pool.BeginTx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	txCtx := injectTx(ctx, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecuteWithRetry reruns the whole transaction on optimistic-locking
// conflicts and retryable database errors. fn must be safe to re-run from
// scratch: every retry re-reads its entities inside the new transaction.
func (u *UnitOfWork) ExecuteWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) error) error {
	if maxRetries < 1 {
		return u.Execute(ctx, fn)
	}

	return retry.Do(
		func() error { return u.Execute(ctx, fn) },
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)+1),
		retry.RetryIf(func(err error) bool {
			return domainErrors.IsConcurrencyError(err) || isRetryableError(err)
		}),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
