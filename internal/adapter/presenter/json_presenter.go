package presenter

import (
	"encoding/json"
	"io"

	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
)

// JSONPresenter implements output.Presenter for JSON output
// Formats all output as JSON for programmatic consumption
type JSONPresenter struct {
	output io.Writer
}

// NewJSONPresenter creates a new JSON presenter
func NewJSONPresenter(output io.Writer) output.Presenter {
	return &JSONPresenter{output: output}
}

// PresentSuccess presents a successful result as JSON
func (p *JSONPresenter) PresentSuccess(message string, data interface{}) error {
	return p.encode(envelope{Success: true, Message: message, Data: data})
}

// PresentError presents an error as JSON
func (p *JSONPresenter) PresentError(err error) error {
	return p.encode(envelope{Success: false, Error: err.Error()})
}

func (p *JSONPresenter) encode(v interface{}) error {
	enc := json.NewEncoder(p.output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// envelope is shared by the structured presenters
type envelope struct {
	Success bool        `json:"success" yaml:"success"`
	Message string      `json:"message,omitempty" yaml:"message,omitempty"`
	Error   string      `json:"error,omitempty" yaml:"error,omitempty"`
	Data    interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}
