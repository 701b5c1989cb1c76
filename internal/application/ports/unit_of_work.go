// Package ports - UnitOfWork manages transaction boundaries.
//
// One UnitOfWork.Execute call is one database transaction: every repository
// call inside the closure must use the context it receives, and a returned
// error rolls the whole unit back.
package ports

import "context"

// UnitOfWork defines the transaction-boundary contract.
type UnitOfWork interface {
	// Execute runs fn inside a transaction. The passed context carries the
	// transaction; all repository operations inside fn must use it.
	// fn error => rollback, nil => commit.
	Execute(ctx context.Context, fn func(context.Context) error) error

	// ExecuteWithRetry runs Execute and retries the whole closure on
	// retryable conflicts (optimistic-locking losses, serialization
	// failures), bounded to maxRetries attempts beyond the first.
	ExecuteWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) error) error
}
