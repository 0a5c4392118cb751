package process

// Status represents the lifecycle status of a process run
type Status string

const (
	StatusNew        Status = "NEW"         // Created, no stage dispatched yet
	StatusInProgress Status = "IN_PROGRESS" // At least one stage dispatched
	StatusSuccess    Status = "SUCCESS"     // Finished cleanly
	StatusFailed     Status = "FAILED"      // Finished with a persisted diagnostic
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the known values
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for SUCCESS and FAILED
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransitionTo checks if a transition to next is allowed.
// Transitions only move toward a terminal status.
func (s Status) CanTransitionTo(next Status) bool {
	validTransitions := map[Status][]Status{
		StatusNew:        {StatusInProgress, StatusSuccess, StatusFailed},
		StatusInProgress: {StatusInProgress, StatusSuccess, StatusFailed},
		StatusSuccess:    {},
		StatusFailed:     {},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, validNext := range allowed {
		if validNext == next {
			return true
		}
	}

	return false
}

// ParseStatus converts a string into a Status
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.IsValid() {
		return "", &InvalidStatusError{Value: value}
	}
	return s, nil
}

// InvalidStatusError is returned when a status string is not recognised
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return "invalid process status: " + e.Value
}
