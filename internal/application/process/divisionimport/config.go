package divisionimport

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const defaultChunkSize = 500

// DefaultConfig returns the embedded default configuration
func DefaultConfig() (process.Payload, error) {
	var cfg map[string]any
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	return process.Payload(cfg), nil
}
