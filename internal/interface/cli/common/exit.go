package common

import (
	"errors"
	"fmt"

	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
)

// Process exit codes
const (
	ExitOK         = 0
	ExitFailed     = 1
	ExitYielded    = 3
	ExitIncomplete = 4
)

// ExitError carries a process exit code through cobra's error return
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an Execute error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailed
}

// ResultError returns the error a command reports for a run result, nil on success
func ResultError(result runner.Result) error {
	switch result {
	case runner.ResultSuccess:
		return nil
	case runner.ResultYielded:
		return &ExitError{Code: ExitYielded, Err: errors.New("process yielded to a concurrent worker")}
	case runner.ResultIncomplete:
		return &ExitError{Code: ExitIncomplete, Err: errors.New("process incomplete, run again with --resume to continue")}
	default:
		return &ExitError{Code: ExitFailed, Err: errors.New("process failed")}
	}
}
