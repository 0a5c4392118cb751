package runner

import (
	"context"
	"fmt"
	"sort"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
)

// Handler executes one stage. It reads and writes the run through r and
// returns nil to continue, r.Finish() to complete, or any other error to fail.
type Handler func(ctx context.Context, r *Runner) error

// StageRegistry maps stage identifiers to handlers
type StageRegistry struct {
	handlers map[process.Stage]Handler
}

// NewStageRegistry creates an empty registry
func NewStageRegistry() *StageRegistry {
	return &StageRegistry{handlers: make(map[process.Stage]Handler)}
}

// Register binds handler to stage
func (s *StageRegistry) Register(stage process.Stage, handler Handler) error {
	if stage.IsEmpty() {
		return fmt.Errorf("stage identifier is required")
	}
	if handler == nil {
		return fmt.Errorf("handler for stage %s is nil", stage)
	}
	if _, exists := s.handlers[stage]; exists {
		return fmt.Errorf("stage %s is already registered", stage)
	}
	s.handlers[stage] = handler
	return nil
}

// MustRegister is Register that panics on error, for static definitions
func (s *StageRegistry) MustRegister(stage process.Stage, handler Handler) *StageRegistry {
	if err := s.Register(stage, handler); err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the handler bound to stage
func (s *StageRegistry) Lookup(stage process.Stage) (Handler, bool) {
	h, ok := s.handlers[stage]
	return h, ok
}

// Stages returns the registered stage identifiers in sorted order
func (s *StageRegistry) Stages() []process.Stage {
	stages := make([]process.Stage, 0, len(s.handlers))
	for stage := range s.handlers {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}

// Len returns the number of registered stages
func (s *StageRegistry) Len() int {
	return len(s.handlers)
}
