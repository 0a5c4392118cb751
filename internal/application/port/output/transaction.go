package output

import (
	"context"
)

// TransactionManager scopes repository calls to one database transaction.
// Repositories join the transaction by reading it from the context passed to fn.
type TransactionManager interface {
	// InTransaction executes fn within a transaction.
	// If fn returns an error or panics, the transaction is rolled back.
	InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
