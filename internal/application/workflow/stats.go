package workflow

import (
	"sync"
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
)

// WorkflowStats tracks execution statistics for a specific workflow
type WorkflowStats struct {
	Name            string
	TotalExecutions int
	SuccessfulRuns  int
	FailedRuns      int
	YieldedRuns     int
	IncompleteRuns  int
	LastExecution   time.Time
	LastResult      runner.Result
	LastError       error
	AverageDuration time.Duration
	IsRunning       bool
	mutex           sync.RWMutex
}

func (s *WorkflowStats) record(result runner.Result, err error, duration time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.LastResult = result
	s.LastError = err
	switch {
	case err != nil || result == runner.ResultFailed:
		s.FailedRuns++
	case result == runner.ResultSuccess:
		s.SuccessfulRuns++
	case result == runner.ResultYielded:
		s.YieldedRuns++
	default:
		s.IncompleteRuns++
	}

	// simple moving average
	if s.AverageDuration == 0 {
		s.AverageDuration = duration
	} else {
		s.AverageDuration = (s.AverageDuration + duration) / 2
	}
}

func (s *WorkflowStats) snapshot() *WorkflowStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return &WorkflowStats{
		Name:            s.Name,
		TotalExecutions: s.TotalExecutions,
		SuccessfulRuns:  s.SuccessfulRuns,
		FailedRuns:      s.FailedRuns,
		YieldedRuns:     s.YieldedRuns,
		IncompleteRuns:  s.IncompleteRuns,
		LastExecution:   s.LastExecution,
		LastResult:      s.LastResult,
		LastError:       s.LastError,
		AverageDuration: s.AverageDuration,
		IsRunning:       s.IsRunning,
	}
}
