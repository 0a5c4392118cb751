package cli

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/procrunner/internal/adapter/presenter"
	"github.com/YoshitsuguKoike/procrunner/internal/application/dto"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
)

type listOptions struct {
	source   string
	statuses []string
	limit    int
	format   string
}

func newListCmd() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List process runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Only runs of this source")
	cmd.Flags().StringSliceVar(&opts.statuses, "status", nil, "Only runs in these statuses (NEW, IN_PROGRESS, SUCCESS, FAILED)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum number of runs to show, 0 for all")
	cmd.Flags().StringVarP(&opts.format, "output", "o", presenter.FormatText, "Output format: text|json|yaml")

	return cmd
}

func runList(ctx context.Context, w io.Writer, opts *listOptions) error {
	p, err := presenter.New(opts.format, w)
	if err != nil {
		return err
	}

	filter := repository.ProcessStateFilter{Source: opts.source, Limit: opts.limit}
	for _, s := range opts.statuses {
		st, err := process.ParseStatus(strings.ToUpper(strings.TrimSpace(s)))
		if err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	container, err := common.InitializeContainer(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	states, err := container.GetProcessStateRepository().List(ctx, filter)
	if err != nil {
		return err
	}
	return p.PresentSuccess("", dto.NewProcessStateDTOs(states))
}
