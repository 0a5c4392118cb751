package process

// Stage identifies the next unit of work of a process run
type Stage string

// StageInitial is the stage every fresh run starts from unless a definition overrides it
const StageInitial Stage = "INITIAL"

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// IsEmpty reports whether the stage identifier is blank
func (s Stage) IsEmpty() bool {
	return s == ""
}
