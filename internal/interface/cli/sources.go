package cli

import (
	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/procrunner/internal/adapter/presenter"
	"github.com/YoshitsuguKoike/procrunner/internal/application/dto"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
)

func newSourcesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List registered process sources and their stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := presenter.New(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			container, err := common.InitializeContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Close()

			return p.PresentSuccess("", dto.NewSourceDTOs(container.GetCatalog()))
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", presenter.FormatText, "Output format: text|json|yaml")
	return cmd
}
