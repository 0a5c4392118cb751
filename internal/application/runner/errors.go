package runner

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
)

var (
	// ErrFinished is the completion signal a handler returns through Runner.Finish
	ErrFinished = errors.New("process finished")

	// ErrParallelExecution reports that another worker advanced the run first.
	// Handlers must return it unchanged (or wrapped) so the run yields.
	ErrParallelExecution = errors.New("parallel execution detected")

	// ErrConflictingUpdate is returned when an Update replaces and merges state at once
	ErrConflictingUpdate = errors.New("state and partial state cannot be combined in one update")

	// ErrInvalidTransition is returned when an Update moves status backwards
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NoStageError reports a persisted stage that the definition has no handler for
type NoStageError struct {
	Stage process.Stage
}

func (e *NoStageError) Error() string {
	return fmt.Sprintf("no handler registered for stage %q", string(e.Stage))
}

// CantProceedError wraps an unexpected failure together with the trace
// that is persisted for postmortem inspection
type CantProceedError struct {
	Cause     error
	Traceback string
}

func (e *CantProceedError) Error() string {
	return e.Cause.Error()
}

func (e *CantProceedError) Unwrap() error {
	return e.Cause
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// cantProceed wraps err, keeping the stack of the deepest error that carries one
func cantProceed(err error) *CantProceedError {
	var cp *CantProceedError
	if errors.As(err, &cp) {
		return cp
	}

	var traced stackTracer
	if !errors.As(err, &traced) {
		traced = pkgerrors.WithStack(err).(stackTracer)
	}
	return &CantProceedError{
		Cause:     err,
		Traceback: fmt.Sprintf("%s%+v", err.Error(), traced.StackTrace()),
	}
}

// panicError turns a recovered panic value into a CantProceedError carrying the goroutine stack
func panicError(v interface{}, stack []byte) *CantProceedError {
	var cause error
	if err, ok := v.(error); ok {
		cause = fmt.Errorf("panic: %w", err)
	} else {
		cause = fmt.Errorf("panic: %v", v)
	}
	return &CantProceedError{Cause: cause, Traceback: cause.Error() + "\n" + string(stack)}
}
