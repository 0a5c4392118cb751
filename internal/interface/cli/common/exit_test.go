package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailed, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitYielded, ExitCode(&ExitError{Code: ExitYielded}))
	assert.Equal(t, ExitIncomplete, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: ExitIncomplete})))
}

func TestResultError(t *testing.T) {
	tests := []struct {
		result runner.Result
		code   int
	}{
		{runner.ResultSuccess, ExitOK},
		{runner.ResultFailed, ExitFailed},
		{runner.ResultYielded, ExitYielded},
		{runner.ResultIncomplete, ExitIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCode(ResultError(tt.result)))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "exit status 4", (&ExitError{Code: 4}).Error())

	cause := errors.New("boom")
	err := &ExitError{Code: 1, Err: cause}
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, cause)
}
