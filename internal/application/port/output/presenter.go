package output

// Presenter renders command results in one output format (text, JSON or YAML)
type Presenter interface {
	// PresentSuccess renders data, prefixed by message when it is not empty
	PresentSuccess(message string, data interface{}) error

	// PresentError renders err and returns it so callers can propagate it
	PresentError(err error) error
}
