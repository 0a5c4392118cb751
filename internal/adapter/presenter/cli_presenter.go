package presenter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/application/dto"
	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
)

// CLIPresenter implements output.Presenter for CLI output
// Formats output in a human-readable text format
type CLIPresenter struct {
	output io.Writer
}

// NewCLIPresenter creates a new CLI presenter
func NewCLIPresenter(output io.Writer) output.Presenter {
	return &CLIPresenter{output: output}
}

// PresentSuccess presents a successful result
func (p *CLIPresenter) PresentSuccess(message string, data interface{}) error {
	if message != "" {
		fmt.Fprintf(p.output, "✓ %s\n", message)
	}

	switch v := data.(type) {
	case nil:
		return nil
	case *dto.RunSummaryDTO:
		return p.presentRunSummary(v)
	case *dto.ProcessStateDTO:
		return p.presentState(v)
	case []*dto.ProcessStateDTO:
		return p.presentStateList(v)
	case []*dto.SourceDTO:
		return p.presentSources(v)
	default:
		// Fallback for unknown types
		fmt.Fprintf(p.output, "%+v\n", data)
	}

	return nil
}

// PresentError presents an error
func (p *CLIPresenter) PresentError(err error) error {
	fmt.Fprintf(p.output, "✗ Error: %v\n", err)
	return err
}

func (p *CLIPresenter) presentRunSummary(s *dto.RunSummaryDTO) error {
	fmt.Fprintf(p.output, "Source: %s\n", s.Source)
	fmt.Fprintf(p.output, "Result: %s\n", s.Result)
	if s.State != nil {
		fmt.Fprintf(p.output, "ID: %s\n", s.State.ID)
		fmt.Fprintf(p.output, "Status: %s\n", s.State.Status)
		fmt.Fprintf(p.output, "Stage: %s\n", s.State.Stage)
		fmt.Fprintf(p.output, "Version: %d\n", s.State.Version)
	}
	if s.Message != "" {
		fmt.Fprintf(p.output, "Message: %s\n", s.Message)
	}
	return nil
}

// presentState prints the record followed by its payload keys in sorted order
func (p *CLIPresenter) presentState(st *dto.ProcessStateDTO) error {
	fmt.Fprintf(p.output, "ID: %s\n", st.ID)
	fmt.Fprintf(p.output, "Source: %s\n", st.Source)
	fmt.Fprintf(p.output, "Status: %s\n", st.Status)
	fmt.Fprintf(p.output, "Stage: %s\n", st.Stage)
	fmt.Fprintf(p.output, "Version: %d\n", st.Version)
	fmt.Fprintf(p.output, "Created: %s\n", st.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(p.output, "Updated: %s\n", st.UpdatedAt.Format(time.RFC3339))

	if st.Error != "" {
		fmt.Fprintf(p.output, "\nError: %s\n", st.Error)
	}

	keys := make([]string, 0, len(st.State))
	for k := range st.State {
		if k == "exception" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	fmt.Fprintf(p.output, "\nState:\n")
	for _, k := range keys {
		fmt.Fprintf(p.output, "  %s: %v\n", k, st.State[k])
	}
	return nil
}

func (p *CLIPresenter) presentStateList(states []*dto.ProcessStateDTO) error {
	if len(states) == 0 {
		fmt.Fprintln(p.output, "No process runs found")
		return nil
	}

	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tSTAGE\tVERSION\tUPDATED")
	for _, st := range states {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			st.ID, st.Source, st.Status, st.Stage, st.Version, st.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (p *CLIPresenter) presentSources(sources []*dto.SourceDTO) error {
	if len(sources) == 0 {
		fmt.Fprintln(p.output, "No process sources registered")
		return nil
	}

	for i, s := range sources {
		if i > 0 {
			fmt.Fprintln(p.output)
		}
		fmt.Fprintf(p.output, "%s\n", s.Source)
		if s.Description != "" {
			fmt.Fprintf(p.output, "  %s\n", s.Description)
		}
		fmt.Fprintf(p.output, "  Initial stage: %s\n", s.InitialStage)
		fmt.Fprintf(p.output, "  Stages: %s\n", strings.Join(s.Stages, ", "))
	}
	return nil
}
