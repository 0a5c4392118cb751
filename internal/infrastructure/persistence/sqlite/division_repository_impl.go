package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/division"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/transaction"
)

// DivisionRepositoryImpl implements repository.DivisionRepository with SQLite
type DivisionRepositoryImpl struct {
	db *sql.DB
}

// NewDivisionRepository creates a new SQLite-based division repository
func NewDivisionRepository(db *sql.DB) repository.DivisionRepository {
	return &DivisionRepositoryImpl{db: db}
}

// getDB returns the appropriate database executor from context
func (r *DivisionRepositoryImpl) getDB(ctx context.Context) dbExecutor {
	if tx, ok := transaction.GetTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// UpsertBatch writes all items or none.
// It joins the caller's transaction when there is one, otherwise opens its own.
func (r *DivisionRepositoryImpl) UpsertBatch(ctx context.Context, items []division.Division) error {
	if len(items) == 0 {
		return nil
	}

	if _, ok := transaction.GetTxFromContext(ctx); ok {
		return r.upsert(ctx, r.getDB(ctx), items)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	if err := r.upsert(ctx, tx, items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (r *DivisionRepositoryImpl) upsert(ctx context.Context, db dbExecutor, items []division.Division) error {
	query := `
		INSERT INTO divisions (code, name, parent_code, level, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			parent_code = excluded.parent_code,
			level = excluded.level,
			updated_at = excluded.updated_at
	`

	now := formatTime(time.Now())
	for _, d := range items {
		var parent interface{}
		if d.ParentCode != "" {
			parent = d.ParentCode
		}
		if _, err := db.ExecContext(ctx, query, d.Code, d.Name, parent, string(d.Level), now); err != nil {
			return fmt.Errorf("upsert division %s: %w", d.Code, err)
		}
	}
	return nil
}

// Find retrieves a division by code
func (r *DivisionRepositoryImpl) Find(ctx context.Context, code string) (*division.Division, error) {
	db := r.getDB(ctx)
	row := db.QueryRowContext(ctx,
		`SELECT code, name, parent_code, level FROM divisions WHERE code = ?`, code)

	var (
		d      division.Division
		parent sql.NullString
		level  string
	)
	if err := row.Scan(&d.Code, &d.Name, &parent, &level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrDivisionNotFound, code)
		}
		return nil, fmt.Errorf("scan division: %w", err)
	}
	d.ParentCode = parent.String
	d.Level = division.Level(level)

	return &d, nil
}

// Count returns the number of stored divisions
func (r *DivisionRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.getDB(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM divisions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count divisions: %w", err)
	}
	return count, nil
}
