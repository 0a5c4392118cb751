package presenter

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
)

// YAMLPresenter implements output.Presenter for YAML output
type YAMLPresenter struct {
	output io.Writer
}

// NewYAMLPresenter creates a new YAML presenter
func NewYAMLPresenter(output io.Writer) output.Presenter {
	return &YAMLPresenter{output: output}
}

// PresentSuccess presents a successful result as a YAML document
func (p *YAMLPresenter) PresentSuccess(message string, data interface{}) error {
	return p.encode(envelope{Success: true, Message: message, Data: data})
}

// PresentError presents an error as a YAML document
func (p *YAMLPresenter) PresentError(err error) error {
	return p.encode(envelope{Success: false, Error: err.Error()})
}

func (p *YAMLPresenter) encode(v interface{}) error {
	enc := yaml.NewEncoder(p.output)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// New returns the presenter for format. An empty format selects text.
func New(format string, w io.Writer) (output.Presenter, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return NewCLIPresenter(w), nil
	case FormatJSON:
		return NewJSONPresenter(w), nil
	case FormatYAML, "yml":
		return NewYAMLPresenter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (text|json|yaml)", format)
	}
}
