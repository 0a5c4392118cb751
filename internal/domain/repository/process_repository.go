package repository

import (
	"context"
	"errors"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
)

// Common process repository errors
var (
	ErrProcessStateNotFound = errors.New("process state not found")
	ErrSourceConfigNotFound = errors.New("source config not found")
	ErrEmptyFieldSet        = errors.New("versioned save requires at least one field")
)

// ProcessStateFilter narrows List results
type ProcessStateFilter struct {
	Source   string
	Statuses []process.Status
	Limit    int
}

// ProcessStateRepository persists process runs.
// VersionedSave is the only mutation primitive after Create.
type ProcessStateRepository interface {
	// Create inserts a fresh run with status NEW, the given stage, an empty payload and version 0
	Create(ctx context.Context, source string, initial process.Stage) (*process.ProcessState, error)

	// Find retrieves a run by ID
	// Returns ErrProcessStateNotFound when absent
	Find(ctx context.Context, id process.StateID) (*process.ProcessState, error)

	// FindLatest returns the most recently created run of source,
	// restricted to the given statuses when any are supplied
	FindLatest(ctx context.Context, source string, statuses ...process.Status) (*process.ProcessState, error)

	// List retrieves runs by filter, newest first
	List(ctx context.Context, filter ProcessStateFilter) ([]*process.ProcessState, error)

	// VersionedSave writes only the listed fields of st, conditioned on the stored
	// version equalling st.Version. On success the stored version is incremented,
	// st.Version follows it, and true is returned. On mismatch nothing is written
	// and false is returned; a mismatch is not an error.
	VersionedSave(ctx context.Context, st *process.ProcessState, fields process.FieldSet) (bool, error)
}

// SourceConfigRepository persists per-source default configuration
type SourceConfigRepository interface {
	// GetOrCreate atomically inserts defaults when no row exists for source, then returns the stored row.
	// created reports whether this call inserted it.
	GetOrCreate(ctx context.Context, source string, defaults process.Payload) (cfg *process.SourceConfig, created bool, err error)

	// Find retrieves the config of source
	// Returns ErrSourceConfigNotFound when absent
	Find(ctx context.Context, source string) (*process.SourceConfig, error)
}
