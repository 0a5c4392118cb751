package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteTransactionManager scopes a process step's writes (stage handler
// side effects and the versioned state save) to one SQLite transaction
type SQLiteTransactionManager struct {
	db *sql.DB
}

// NewSQLiteTransactionManager creates a new SQLite transaction manager
func NewSQLiteTransactionManager(db *sql.DB) *SQLiteTransactionManager {
	return &SQLiteTransactionManager{db: db}
}

// InTransaction runs fn inside one transaction and commits when fn returns nil.
// A context that already carries a transaction is reused, so nested scopes
// commit or roll back with the outermost one. A panic in fn rolls back before
// it propagates.
func (m *SQLiteTransactionManager) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	if _, ok := GetTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if fnErr := fn(withTx(ctx, tx)); fnErr != nil {
		// a cancelled ctx has already rolled the transaction back
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			fnErr = errors.Join(fnErr, fmt.Errorf("rollback: %w", rbErr))
		}
		finished = true
		return fnErr
	}

	finished = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txKey is used as a key for storing transaction in context
type txKey struct{}

func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTxFromContext retrieves a transaction from context
// This is a helper function for repositories to use
func GetTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
