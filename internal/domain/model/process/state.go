package process

import (
	"fmt"
	"time"
)

// ProcessState is the persisted record of a single process run.
// It is the resumption point after a crash and the audit trail of the run.
type ProcessState struct {
	ID        StateID
	Source    string
	Status    Status
	Stage     Stage
	State     Payload
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProcessState creates an unsaved fresh run at version 0
func NewProcessState(source string, initial Stage) (*ProcessState, error) {
	if source == "" {
		return nil, fmt.Errorf("process source cannot be empty")
	}
	if initial.IsEmpty() {
		initial = StageInitial
	}
	now := time.Now().UTC()
	return &ProcessState{
		ID:        NewStateID(),
		Source:    source,
		Status:    StatusNew,
		Stage:     initial,
		State:     Payload{},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns a copy whose payload can be changed without affecting the original
func (s *ProcessState) Clone() *ProcessState {
	if s == nil {
		return nil
	}
	c := *s
	c.State = s.State.Clone()
	return &c
}

// IsTerminal reports whether no further stage may run
func (s *ProcessState) IsTerminal() bool {
	return s.Status.IsTerminal()
}
