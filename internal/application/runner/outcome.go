package runner

// Outcome is the result of dispatching one stage
type Outcome int

const (
	// OutcomeContinue means the handler returned normally; dispatch the next stage
	OutcomeContinue Outcome = iota
	// OutcomeFinished means the run is complete and persisted as SUCCESS
	OutcomeFinished
	// OutcomeFailed means the run is persisted as FAILED (or was already FAILED)
	OutcomeFailed
	// OutcomeYielded means another worker owns the run; nothing was written
	OutcomeYielded
	// OutcomeInterrupted means the context ended; nothing was written
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeFinished:
		return "finished"
	case OutcomeFailed:
		return "failed"
	case OutcomeYielded:
		return "yielded"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Result is the overall result of Runner.Run
type Result int

const (
	ResultSuccess Result = iota
	ResultFailed
	// ResultYielded means a concurrent worker advanced the run
	ResultYielded
	// ResultIncomplete means the stage budget ran out or the context ended
	// before a terminal status was reached
	ResultIncomplete
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	case ResultYielded:
		return "yielded"
	case ResultIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the run reached SUCCESS
func (r Result) Succeeded() bool {
	return r == ResultSuccess
}

func resultOf(o Outcome) Result {
	switch o {
	case OutcomeFinished:
		return ResultSuccess
	case OutcomeFailed:
		return ResultFailed
	case OutcomeYielded:
		return ResultYielded
	default:
		return ResultIncomplete
	}
}
