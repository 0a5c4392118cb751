package dto

import (
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
)

// ProcessStateDTO represents a process run in data transfer format
type ProcessStateDTO struct {
	ID        string                 `json:"id" yaml:"id"`
	Source    string                 `json:"source" yaml:"source"`
	Status    string                 `json:"status" yaml:"status"`
	Stage     string                 `json:"stage" yaml:"stage"`
	Version   int64                  `json:"version" yaml:"version"`
	State     map[string]interface{} `json:"state" yaml:"state"`
	Error     string                 `json:"error,omitempty" yaml:"error,omitempty"` // Message of a FAILED run
	CreatedAt time.Time              `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" yaml:"updated_at"`
}

// RunSummaryDTO is the outcome of one `run` invocation
type RunSummaryDTO struct {
	Source  string           `json:"source" yaml:"source"`
	Result  string           `json:"result" yaml:"result"`
	Message string           `json:"message,omitempty" yaml:"message,omitempty"`
	State   *ProcessStateDTO `json:"state,omitempty" yaml:"state,omitempty"`
}

// SourceDTO describes a registered process definition
type SourceDTO struct {
	Source       string   `json:"source" yaml:"source"`
	Description  string   `json:"description" yaml:"description"`
	InitialStage string   `json:"initial_stage" yaml:"initial_stage"`
	Stages       []string `json:"stages" yaml:"stages"`
}

// NewProcessStateDTO converts a domain state. nil maps to nil.
func NewProcessStateDTO(st *process.ProcessState) *ProcessStateDTO {
	if st == nil {
		return nil
	}
	d := &ProcessStateDTO{
		ID:        st.ID.String(),
		Source:    st.Source,
		Status:    st.Status.String(),
		Stage:     string(st.Stage),
		Version:   st.Version,
		State:     map[string]interface{}(st.State.Clone()),
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
	if exc, ok := st.State["exception"].(map[string]interface{}); ok {
		if msg, ok := exc["message"].(string); ok {
			d.Error = msg
		}
	}
	return d
}

// NewProcessStateDTOs converts a list of domain states
func NewProcessStateDTOs(states []*process.ProcessState) []*ProcessStateDTO {
	out := make([]*ProcessStateDTO, 0, len(states))
	for _, st := range states {
		out = append(out, NewProcessStateDTO(st))
	}
	return out
}

// NewRunSummaryDTO builds the summary of a finished Run call
func NewRunSummaryDTO(source string, result runner.Result, st *process.ProcessState, runErr error) *RunSummaryDTO {
	d := &RunSummaryDTO{
		Source: source,
		Result: result.String(),
		State:  NewProcessStateDTO(st),
	}
	switch {
	case runErr != nil:
		d.Message = runErr.Error()
	case d.State != nil && d.State.Error != "":
		d.Message = d.State.Error
	}
	return d
}

// NewSourceDTOs describes every definition in the catalog, sorted by source
func NewSourceDTOs(catalog *runner.Catalog) []*SourceDTO {
	sources := catalog.Sources()
	out := make([]*SourceDTO, 0, len(sources))
	for _, source := range sources {
		def, _ := catalog.Get(source)
		stages := def.Stages.Stages()
		names := make([]string, len(stages))
		for i, s := range stages {
			names[i] = string(s)
		}
		initial := def.InitialStage
		if initial == "" {
			initial = process.StageInitial
		}
		out = append(out, &SourceDTO{
			Source:       def.Source,
			Description:  def.Description,
			InitialStage: string(initial),
			Stages:       names,
		})
	}
	return out
}
