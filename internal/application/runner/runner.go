package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/YoshitsuguKoike/procrunner/internal/app"
	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
)

// MaxRuns is the default number of stages one Run may dispatch
const MaxRuns = 1000

// Deps are the repositories a Runner persists through
type Deps struct {
	States  repository.ProcessStateRepository
	Configs repository.SourceConfigRepository
}

// Option configures a Runner
type Option func(*Runner)

// WithMaxRuns sets the stage budget of one Run
func WithMaxRuns(n int) Option {
	return func(r *Runner) { r.maxRuns = n }
}

// WithDebug disables failure classification. Handler errors and panics reach
// the caller unchanged and no FAILED record is written. Writes made by the
// handlers themselves are still persisted.
func WithDebug(debug bool) Option {
	return func(r *Runner) { r.debug = debug }
}

// WithLogger sets the base logger. Defaults to app.GetLogger().
func WithLogger(l app.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics enables prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTransactionManager sets the manager used for initialization and
// Runner.Transaction. Without one, functions run directly on the caller context.
func WithTransactionManager(tm output.TransactionManager) Option {
	return func(r *Runner) {
		if tm != nil {
			r.txm = tm
		}
	}
}

// Runner drives one process definition against a persisted ProcessState.
// A Runner is not safe for concurrent use; each worker creates its own.
type Runner struct {
	def     Definition
	states  repository.ProcessStateRepository
	configs repository.SourceConfigRepository
	txm     output.TransactionManager
	logger  app.Logger
	metrics *Metrics
	maxRuns int
	debug   bool

	// per Run
	state  *process.ProcessState
	config process.Payload
	log    app.Logger
}

// New creates a Runner for def
func New(def Definition, deps Deps, opts ...Option) (*Runner, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if deps.States == nil || deps.Configs == nil {
		return nil, fmt.Errorf("runner for %s requires state and config repositories", def.Source)
	}

	r := &Runner{
		def:     def,
		states:  deps.States,
		configs: deps.Configs,
		txm:     directTransactions{},
		logger:  app.GetLogger(),
		maxRuns: MaxRuns,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.maxRuns <= 0 {
		return nil, fmt.Errorf("max runs must be positive, got %d", r.maxRuns)
	}
	r.log = r.logger
	return r, nil
}

// Run resumes st, or starts a new run when st is nil, and dispatches stages
// until the run is terminal, yields to another worker, or the budget runs out.
//
// The returned error is nil for every classified outcome. It is set when the
// terminal status itself cannot be persisted, when ctx ends, when no run
// could be created, and in debug mode when a handler fails.
func (r *Runner) Run(ctx context.Context, st *process.ProcessState) (result Result, err error) {
	r.state = nil
	r.config = nil
	r.log = r.logger.With("source", r.def.Source, "run_id", uuid.NewString())
	result = ResultFailed
	defer func() { r.metrics.observeRun(r.def.Source, result) }()

	if st != nil && st.Source != r.def.Source {
		return ResultFailed, fmt.Errorf("process state %s belongs to source %s, not %s", st.ID, st.Source, r.def.Source)
	}

	if err := r.initialize(ctx, st); err != nil {
		if r.state == nil || r.debug {
			r.log.Error("initialization failed", "error", err)
			return ResultFailed, err
		}
		outcome, rerr := r.resolve(ctx, err)
		return resultOf(outcome), rerr
	}

	for i := 0; i < r.maxRuns; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.log.Warn("run interrupted", "stage", string(r.state.Stage), "version", r.state.Version)
			return ResultIncomplete, ctxErr
		}

		outcome, err := r.runNextStage(ctx)
		if outcome == OutcomeContinue && err == nil {
			continue
		}
		return resultOf(outcome), err
	}

	r.log.Warn("stage budget exhausted", "max_runs", r.maxRuns, "stage", string(r.state.Stage), "version", r.state.Version)
	return ResultIncomplete, nil
}

// initialize creates the run when needed and loads the source config,
// both inside one transaction
func (r *Runner) initialize(ctx context.Context, st *process.ProcessState) error {
	if st != nil {
		r.state = st.Clone()
		r.log = r.log.With("state_id", st.ID.String())
	}

	var (
		created *process.ProcessState
		config  process.Payload
	)
	err := r.guard(func() error {
		return r.txm.InTransaction(ctx, func(txCtx context.Context) error {
			if st == nil {
				var err error
				created, err = r.states.Create(txCtx, r.def.Source, r.def.initialStage())
				if err != nil {
					return fmt.Errorf("create process state: %w", err)
				}
			}

			cfg, isNew, err := r.configs.GetOrCreate(txCtx, r.def.Source, r.def.DefaultConfig)
			if err != nil {
				return fmt.Errorf("load config for %s: %w", r.def.Source, err)
			}
			if isNew {
				r.log.Info("created default config")
			}
			config = cfg.Config
			return nil
		})
	})
	if err != nil {
		return err
	}

	if created != nil {
		r.state = created
		r.log = r.log.With("state_id", created.ID.String())
		r.log.Debug("created process state", "stage", string(created.Stage))
	}
	r.config = config.Clone()
	return nil
}

// runNextStage dispatches the handler for the current stage and classifies
// what it returns
func (r *Runner) runNextStage(ctx context.Context) (Outcome, error) {
	switch r.state.Status {
	case process.StatusSuccess:
		return OutcomeFinished, nil
	case process.StatusFailed:
		r.log.Warn("refusing to resume failed run; start a new one", "stage", string(r.state.Stage))
		return OutcomeFailed, nil
	}

	if r.state.Status != process.StatusInProgress {
		inProgress := process.StatusInProgress
		if err := r.UpdateState(ctx, Update{Status: &inProgress}); err != nil {
			return r.resolve(ctx, err)
		}
	}

	stage := r.state.Stage
	handler, ok := r.def.Stages.Lookup(stage)
	if !ok {
		return r.resolve(ctx, &NoStageError{Stage: stage})
	}

	r.log.Debug("dispatching stage", "stage", string(stage), "version", r.state.Version)
	start := time.Now()
	err := r.guard(func() error { return handler(ctx, r) })
	elapsed := time.Since(start)

	outcome, rerr := r.resolve(ctx, err)
	r.metrics.observeStage(r.def.Source, stage, outcome, elapsed)
	return outcome, rerr
}

// guard converts panics into CantProceedError outside debug mode
func (r *Runner) guard(fn func() error) (err error) {
	if !r.debug {
		defer func() {
			if v := recover(); v != nil {
				err = panicError(v, debug.Stack())
			}
		}()
	}
	return fn()
}

// resolve maps a handler result to an Outcome and persists terminal statuses
func (r *Runner) resolve(ctx context.Context, err error) (Outcome, error) {
	switch {
	case err == nil:
		return OutcomeContinue, nil
	case errors.Is(err, ErrFinished):
		return r.finish(ctx)
	case errors.Is(err, ErrParallelExecution):
		r.log.Warn("parallel execution detected, yielding", "stage", string(r.state.Stage), "version", r.state.Version)
		if r.debug {
			return OutcomeYielded, err
		}
		return OutcomeYielded, nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		r.log.Warn("stage interrupted", "stage", string(r.state.Stage), "error", err)
		return OutcomeInterrupted, err
	case r.debug:
		return OutcomeFailed, err
	}
	return r.fail(ctx, err)
}

func (r *Runner) finish(ctx context.Context) (Outcome, error) {
	if r.state.Status == process.StatusSuccess {
		return OutcomeFinished, nil
	}

	success := process.StatusSuccess
	if err := r.UpdateState(ctx, Update{Status: &success}); err != nil {
		if errors.Is(err, ErrParallelExecution) {
			r.log.Warn("run finished concurrently, yielding", "version", r.state.Version)
			return OutcomeYielded, nil
		}
		return OutcomeFailed, fmt.Errorf("persist success: %w", err)
	}

	r.log.Info("process finished", "stage", string(r.state.Stage), "version", r.state.Version)
	return OutcomeFinished, nil
}

func (r *Runner) fail(ctx context.Context, cause error) (Outcome, error) {
	cp := cantProceed(cause)

	if r.state.IsTerminal() {
		r.log.Error("failure on terminal run", "status", string(r.state.Status), "error", cp.Error())
		return OutcomeFailed, nil
	}

	failed := process.StatusFailed
	err := r.UpdateState(ctx, Update{
		Status: &failed,
		PartialState: process.Payload{
			"exception": map[string]any{
				"message":   cp.Error(),
				"traceback": cp.Traceback,
			},
		},
	})
	if err != nil {
		if errors.Is(err, ErrParallelExecution) {
			r.log.Warn("failure superseded by concurrent worker, yielding", "error", cp.Error())
			return OutcomeYielded, nil
		}
		return OutcomeFailed, fmt.Errorf("persist failure (%v): %w", cp.Cause, err)
	}

	r.log.Error("process failed", "stage", string(r.state.Stage), "version", r.state.Version, "error", cp.Error())
	return OutcomeFailed, nil
}

// Update lists the fields a handler wants to change. Nil fields are left untouched.
// State replaces the payload, PartialState merges into it; they are exclusive.
type Update struct {
	Status       *process.Status
	Stage        *process.Stage
	State        process.Payload
	PartialState process.Payload
}

// UpdateState persists u with a versioned save. A version mismatch returns an
// error wrapping ErrParallelExecution, which handlers must return as is.
// The in-memory record changes only after the save succeeds.
func (r *Runner) UpdateState(ctx context.Context, u Update) error {
	if u.State != nil && u.PartialState != nil {
		return ErrConflictingUpdate
	}

	next := r.state.Clone()
	fields := process.NewFieldSet()

	if u.Status != nil {
		if *u.Status != next.Status && !next.Status.CanTransitionTo(*u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, next.Status, *u.Status)
		}
		next.Status = *u.Status
		fields.Add(process.FieldStatus)
	}
	if u.Stage != nil {
		if u.Stage.IsEmpty() {
			return fmt.Errorf("stage cannot be empty")
		}
		next.Stage = *u.Stage
		fields.Add(process.FieldStage)
	}
	if u.State != nil {
		next.State = u.State.Clone()
		fields.Add(process.FieldState)
	}
	if len(u.PartialState) > 0 {
		next.State = next.State.Merge(u.PartialState)
		fields.Add(process.FieldState)
	}

	if fields.IsEmpty() {
		return nil
	}

	saved, err := r.states.VersionedSave(ctx, next, fields)
	if err != nil {
		return fmt.Errorf("save process state %s: %w", next.ID, err)
	}
	if !saved {
		return fmt.Errorf("%w: %s at version %d", ErrParallelExecution, next.ID, r.state.Version)
	}

	r.state = next
	return nil
}

// Advance moves the run to stage next, merging partial into the state payload
func (r *Runner) Advance(ctx context.Context, next process.Stage, partial process.Payload) error {
	return r.UpdateState(ctx, Update{Stage: &next, PartialState: partial})
}

// MergeState merges partial into the state payload
func (r *Runner) MergeState(ctx context.Context, partial process.Payload) error {
	return r.UpdateState(ctx, Update{PartialState: partial})
}

// Transaction runs fn in a transaction. Repository calls and UpdateState made
// with txCtx commit together; on error the in-memory record is restored.
func (r *Runner) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	snapshot := r.state.Clone()
	if err := r.txm.InTransaction(ctx, fn); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

// Finish returns the completion signal. Handlers return it to end the run successfully.
func (r *Runner) Finish() error {
	return ErrFinished
}

// State returns a copy of the current record
func (r *Runner) State() *process.ProcessState {
	return r.state.Clone()
}

// Config returns a copy of the source configuration
func (r *Runner) Config() process.Payload {
	return r.config.Clone()
}

// Source returns the definition's source key
func (r *Runner) Source() string {
	return r.def.Source
}

// Logger returns the logger scoped to the current run
func (r *Runner) Logger() app.Logger {
	return r.log
}

// directTransactions runs fn on the caller context
type directTransactions struct{}

func (directTransactions) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

