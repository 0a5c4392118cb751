package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/transaction"
)

// SourceConfigRepositoryImpl implements repository.SourceConfigRepository with SQLite
type SourceConfigRepositoryImpl struct {
	db *sql.DB
}

// getDB returns the appropriate database executor from context
func (r *SourceConfigRepositoryImpl) getDB(ctx context.Context) dbExecutor {
	if tx, ok := transaction.GetTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// NewSourceConfigRepository creates a new SQLite-based source config repository
func NewSourceConfigRepository(db *sql.DB) repository.SourceConfigRepository {
	return &SourceConfigRepositoryImpl{db: db}
}

// GetOrCreate inserts defaults unless a row exists, then reads the stored row.
// ON CONFLICT DO NOTHING keeps the insert atomic when two workers initialise at once.
func (r *SourceConfigRepositoryImpl) GetOrCreate(ctx context.Context, source string, defaults process.Payload) (*process.SourceConfig, bool, error) {
	if source == "" {
		return nil, false, fmt.Errorf("source cannot be empty")
	}

	configJSON, err := process.MarshalPayload(defaults)
	if err != nil {
		return nil, false, err
	}

	db := r.getDB(ctx)
	result, err := db.ExecContext(ctx,
		`INSERT INTO process_source_configs (source, config, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(source) DO NOTHING`,
		source, configJSON, formatTime(time.Now()),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert source config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}

	cfg, err := r.Find(ctx, source)
	if err != nil {
		return nil, false, err
	}

	return cfg, rows == 1, nil
}

// Find retrieves the config of source
func (r *SourceConfigRepositoryImpl) Find(ctx context.Context, source string) (*process.SourceConfig, error) {
	db := r.getDB(ctx)
	row := db.QueryRowContext(ctx,
		`SELECT source, config, created_at FROM process_source_configs WHERE source = ?`, source)

	var name, configJSON, createdAt string
	if err := row.Scan(&name, &configJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrSourceConfigNotFound, source)
		}
		return nil, fmt.Errorf("scan source config: %w", err)
	}

	cfg, err := process.UnmarshalPayload(configJSON)
	if err != nil {
		return nil, err
	}
	created, err := parseTime("created_at", createdAt)
	if err != nil {
		return nil, err
	}

	return &process.SourceConfig{Source: name, Config: cfg, CreatedAt: created}, nil
}
