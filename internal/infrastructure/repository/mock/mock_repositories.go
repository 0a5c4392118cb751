package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/division"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
)

// MockProcessStateRepository is an in-memory ProcessStateRepository.
// VersionedSave performs the version compare and increment under one lock.
type MockProcessStateRepository struct {
	mu     sync.RWMutex
	states map[string]*process.ProcessState

	// CreateErr, when set, is returned by Create
	CreateErr error
	// SaveErr, when set, is returned by VersionedSave without writing
	SaveErr error
	// BeforeSave runs inside VersionedSave before the version check.
	// Tests use it to simulate a concurrent writer.
	BeforeSave func(stored *process.ProcessState)

	saves int
}

// NewMockProcessStateRepository creates a new in-memory process state repository
func NewMockProcessStateRepository() *MockProcessStateRepository {
	return &MockProcessStateRepository{
		states: make(map[string]*process.ProcessState),
	}
}

func (m *MockProcessStateRepository) Create(ctx context.Context, source string, initial process.Stage) (*process.ProcessState, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	st, err := process.NewProcessState(source, initial)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[st.ID.String()] = st.Clone()
	return st, nil
}

func (m *MockProcessStateRepository) Find(ctx context.Context, id process.StateID) (*process.ProcessState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, exists := m.states[id.String()]
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrProcessStateNotFound, id)
	}
	return st.Clone(), nil
}

func (m *MockProcessStateRepository) FindLatest(ctx context.Context, source string, statuses ...process.Status) (*process.ProcessState, error) {
	list, err := m.List(ctx, repository.ProcessStateFilter{Source: source, Statuses: statuses, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: latest run of %s", repository.ErrProcessStateNotFound, source)
	}
	return list[0], nil
}

func (m *MockProcessStateRepository) List(ctx context.Context, filter repository.ProcessStateFilter) ([]*process.ProcessState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*process.ProcessState
	for _, st := range m.states {
		if m.matchesFilter(st, filter) {
			result = append(result, st.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() > result[j].ID.String() })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockProcessStateRepository) matchesFilter(st *process.ProcessState, filter repository.ProcessStateFilter) bool {
	if filter.Source != "" && st.Source != filter.Source {
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, s := range filter.Statuses {
		if st.Status == s {
			return true
		}
	}
	return false
}

func (m *MockProcessStateRepository) VersionedSave(ctx context.Context, st *process.ProcessState, fields process.FieldSet) (bool, error) {
	if fields.IsEmpty() {
		return false, repository.ErrEmptyFieldSet
	}
	if m.SaveErr != nil {
		return false, m.SaveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.states[st.ID.String()]
	if !exists {
		return false, nil
	}

	if m.BeforeSave != nil {
		m.BeforeSave(stored)
	}

	if stored.Version != st.Version {
		return false, nil
	}

	if fields.Contains(process.FieldStatus) {
		stored.Status = st.Status
	}
	if fields.Contains(process.FieldStage) {
		stored.Stage = st.Stage
	}
	if fields.Contains(process.FieldState) {
		stored.State = st.State.Clone()
	}
	now := time.Now().UTC()
	stored.Version++
	stored.UpdatedAt = now
	m.saves++

	st.Version = stored.Version
	st.UpdatedAt = now
	return true, nil
}

// Put stores a copy of st as-is, bypassing version checks (test setup)
func (m *MockProcessStateRepository) Put(st *process.ProcessState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ID.String()] = st.Clone()
}

// SaveCount returns the number of successful versioned saves
func (m *MockProcessStateRepository) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// MockSourceConfigRepository is an in-memory SourceConfigRepository
type MockSourceConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]*process.SourceConfig

	// Err, when set, is returned by GetOrCreate
	Err error
}

// NewMockSourceConfigRepository creates a new in-memory source config repository
func NewMockSourceConfigRepository() *MockSourceConfigRepository {
	return &MockSourceConfigRepository{
		configs: make(map[string]*process.SourceConfig),
	}
}

func (m *MockSourceConfigRepository) GetOrCreate(ctx context.Context, source string, defaults process.Payload) (*process.SourceConfig, bool, error) {
	if m.Err != nil {
		return nil, false, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	created := false
	cfg, exists := m.configs[source]
	if !exists {
		cfg = &process.SourceConfig{Source: source, Config: defaults.Clone(), CreatedAt: time.Now().UTC()}
		m.configs[source] = cfg
		created = true
	}
	return &process.SourceConfig{Source: cfg.Source, Config: cfg.Config.Clone(), CreatedAt: cfg.CreatedAt}, created, nil
}

func (m *MockSourceConfigRepository) Find(ctx context.Context, source string) (*process.SourceConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, exists := m.configs[source]
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrSourceConfigNotFound, source)
	}
	return &process.SourceConfig{Source: cfg.Source, Config: cfg.Config.Clone(), CreatedAt: cfg.CreatedAt}, nil
}

// Len returns the number of stored configs
func (m *MockSourceConfigRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.configs)
}

// MockDivisionRepository is an in-memory DivisionRepository
type MockDivisionRepository struct {
	mu        sync.RWMutex
	divisions map[string]division.Division

	// UpsertErr, when set, is returned by UpsertBatch without writing
	UpsertErr error
}

// NewMockDivisionRepository creates a new in-memory division repository
func NewMockDivisionRepository() *MockDivisionRepository {
	return &MockDivisionRepository{
		divisions: make(map[string]division.Division),
	}
}

func (m *MockDivisionRepository) UpsertBatch(ctx context.Context, items []division.Division) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range items {
		m.divisions[d.Code] = d
	}
	return nil
}

func (m *MockDivisionRepository) Find(ctx context.Context, code string) (*division.Division, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, exists := m.divisions[code]
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrDivisionNotFound, code)
	}
	return &d, nil
}

func (m *MockDivisionRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.divisions), nil
}
