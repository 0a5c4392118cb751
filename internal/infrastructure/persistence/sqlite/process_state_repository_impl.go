package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/transaction"
)

const processStateColumns = `id, source, status, stage, state, version, created_at, updated_at`

// ProcessStateRepositoryImpl implements repository.ProcessStateRepository with SQLite
type ProcessStateRepositoryImpl struct {
	db *sql.DB
}

// getDB returns the appropriate database executor from context
func (r *ProcessStateRepositoryImpl) getDB(ctx context.Context) dbExecutor {
	if tx, ok := transaction.GetTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// NewProcessStateRepository creates a new SQLite-based process state repository
func NewProcessStateRepository(db *sql.DB) repository.ProcessStateRepository {
	return &ProcessStateRepositoryImpl{db: db}
}

// Create inserts a fresh run
func (r *ProcessStateRepositoryImpl) Create(ctx context.Context, source string, initial process.Stage) (*process.ProcessState, error) {
	st, err := process.NewProcessState(source, initial)
	if err != nil {
		return nil, err
	}

	stateJSON, err := process.MarshalPayload(st.State)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO process_states (id, source, status, stage, state, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	db := r.getDB(ctx)
	_, err = db.ExecContext(ctx, query,
		st.ID.String(), st.Source, string(st.Status), string(st.Stage), stateJSON, st.Version,
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert process state: %w", err)
	}

	return st, nil
}

// Find retrieves a run by ID
func (r *ProcessStateRepositoryImpl) Find(ctx context.Context, id process.StateID) (*process.ProcessState, error) {
	query := `SELECT ` + processStateColumns + ` FROM process_states WHERE id = ?`

	db := r.getDB(ctx)
	st, err := scanProcessState(db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repository.ErrProcessStateNotFound, id)
	}
	return st, err
}

// FindLatest returns the newest run of source. ULIDs sort by creation time.
func (r *ProcessStateRepositoryImpl) FindLatest(ctx context.Context, source string, statuses ...process.Status) (*process.ProcessState, error) {
	where, args := buildProcessStateWhere(repository.ProcessStateFilter{Source: source, Statuses: statuses})
	query := `SELECT ` + processStateColumns + ` FROM process_states` + where + ` ORDER BY id DESC LIMIT 1`

	db := r.getDB(ctx)
	st, err := scanProcessState(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: latest run of %s", repository.ErrProcessStateNotFound, source)
	}
	return st, err
}

// List retrieves runs by filter, newest first
func (r *ProcessStateRepositoryImpl) List(ctx context.Context, filter repository.ProcessStateFilter) ([]*process.ProcessState, error) {
	where, args := buildProcessStateWhere(filter)
	query := `SELECT ` + processStateColumns + ` FROM process_states` + where + ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	db := r.getDB(ctx)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query process states: %w", err)
	}
	defer rows.Close()

	var states []*process.ProcessState
	for rows.Next() {
		st, err := scanProcessState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate process states: %w", err)
	}

	return states, nil
}

// VersionedSave writes the listed fields with a single compare-and-swap UPDATE.
// The version check and increment happen in the same statement, so two writers
// holding the same version cannot both succeed.
func (r *ProcessStateRepositoryImpl) VersionedSave(ctx context.Context, st *process.ProcessState, fields process.FieldSet) (bool, error) {
	if fields.IsEmpty() {
		return false, repository.ErrEmptyFieldSet
	}

	var (
		sets []string
		args []interface{}
	)
	for _, f := range fields.Sorted() {
		switch f {
		case process.FieldStatus:
			sets = append(sets, "status = ?")
			args = append(args, string(st.Status))
		case process.FieldStage:
			sets = append(sets, "stage = ?")
			args = append(args, string(st.Stage))
		case process.FieldState:
			stateJSON, err := process.MarshalPayload(st.State)
			if err != nil {
				return false, err
			}
			sets = append(sets, "state = ?")
			args = append(args, stateJSON)
		default:
			return false, fmt.Errorf("unknown process state field: %s", f)
		}
	}

	now := time.Now().UTC()
	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, formatTime(now), st.ID.String(), st.Version)

	query := `UPDATE process_states SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND version = ?`

	db := r.getDB(ctx)
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update process state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	if rows != 1 {
		return false, nil
	}

	st.Version++
	st.UpdatedAt = now
	return true, nil
}

func buildProcessStateWhere(filter repository.ProcessStateFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, filter.Source)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProcessState(row rowScanner) (*process.ProcessState, error) {
	var (
		id, source, status, stage, stateJSON string
		version                              int64
		createdAt, updatedAt                 string
	)

	if err := row.Scan(&id, &source, &status, &stage, &stateJSON, &version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan process state: %w", err)
	}

	stateID, err := process.ParseStateID(id)
	if err != nil {
		return nil, fmt.Errorf("invalid process state ID: %w", err)
	}
	parsedStatus, err := process.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	payload, err := process.UnmarshalPayload(stateJSON)
	if err != nil {
		return nil, err
	}
	created, err := parseTime("created_at", createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime("updated_at", updatedAt)
	if err != nil {
		return nil, err
	}

	return &process.ProcessState{
		ID:        stateID,
		Source:    source,
		Status:    parsedStatus,
		Stage:     process.Stage(stage),
		State:     payload,
		Version:   version,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
