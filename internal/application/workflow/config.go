package workflow

import "time"

// WorkflowConfig holds the schedule of one process source
type WorkflowConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
	// Interval is the pause after a cycle that reached a terminal result.
	// Zero stops the workflow after that cycle.
	Interval time.Duration `yaml:"interval"`
}
