package status

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/procrunner/internal/adapter/presenter"
	"github.com/YoshitsuguKoike/procrunner/internal/application/dto"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
)

// NewCommand creates the status command
func NewCommand() *cobra.Command {
	var (
		stateID string
		source  string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a process run (by state ID or the latest run of a source)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return show(cmd.Context(), cmd.OutOrStdout(), stateID, source, format)
		},
	}

	cmd.Flags().StringVar(&stateID, "state-id", "", "State ID to show")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Show the latest run of this source")
	cmd.Flags().StringVarP(&format, "output", "o", presenter.FormatText, "Output format: text|json|yaml")
	cmd.MarkFlagsOneRequired("state-id", "source")
	cmd.MarkFlagsMutuallyExclusive("state-id", "source")

	return cmd
}

func show(ctx context.Context, w io.Writer, stateID, source, format string) error {
	p, err := presenter.New(format, w)
	if err != nil {
		return err
	}

	container, err := common.InitializeContainer(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	repo := container.GetProcessStateRepository()

	var st *process.ProcessState
	if stateID != "" {
		id, err := process.ParseStateID(stateID)
		if err != nil {
			return err
		}
		st, err = repo.Find(ctx, id)
		if err != nil {
			return err
		}
	} else {
		st, err = repo.FindLatest(ctx, source)
		if err != nil {
			return err
		}
	}

	return p.PresentSuccess("", dto.NewProcessStateDTO(st))
}
