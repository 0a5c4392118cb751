package workflow

import (
	"context"
	"errors"

	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
)

// WorkflowRunner defines the interface for workflow execution
type WorkflowRunner interface {
	// Name returns the workflow name (the process source)
	Name() string

	// Run executes one cycle of the workflow
	Run(ctx context.Context) (runner.Result, error)

	// Description returns a human-readable description
	Description() string
}

// RunnerFactory builds a fresh process runner for one cycle
type RunnerFactory func() (*runner.Runner, error)

// ProcessWorkflow drives one process source. Each cycle continues the latest
// unfinished run of the source, or starts a new run when there is none.
type ProcessWorkflow struct {
	source      string
	description string
	states      repository.ProcessStateRepository
	newRunner   RunnerFactory
}

// NewProcessWorkflow creates a workflow for def
func NewProcessWorkflow(def runner.Definition, states repository.ProcessStateRepository, newRunner RunnerFactory) *ProcessWorkflow {
	return &ProcessWorkflow{
		source:      def.Source,
		description: def.Description,
		states:      states,
		newRunner:   newRunner,
	}
}

func (w *ProcessWorkflow) Name() string        { return w.source }
func (w *ProcessWorkflow) Description() string { return w.description }

// Run executes one Run call of the process runner
func (w *ProcessWorkflow) Run(ctx context.Context) (runner.Result, error) {
	st, err := w.states.FindLatest(ctx, w.source, process.StatusNew, process.StatusInProgress)
	if err != nil && !errors.Is(err, repository.ErrProcessStateNotFound) {
		return runner.ResultFailed, err
	}

	r, err := w.newRunner()
	if err != nil {
		return runner.ResultFailed, err
	}
	return r.Run(ctx, st)
}
