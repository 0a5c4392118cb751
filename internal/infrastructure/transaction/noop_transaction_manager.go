package transaction

import (
	"context"
)

// NoopTransactionManager runs fn directly.
// It backs the in-memory repositories, whose operations are individually atomic.
type NoopTransactionManager struct{}

// NewNoopTransactionManager creates a transaction manager without a backing store
func NewNoopTransactionManager() *NoopTransactionManager {
	return &NoopTransactionManager{}
}

// InTransaction executes fn with the same context
func (m *NoopTransactionManager) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}
