package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	sqliterepo "github.com/YoshitsuguKoike/procrunner/internal/infrastructure/persistence/sqlite"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the container applies pending migrations
			container, err := common.InitializeContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Close()

			version, err := sqliterepo.NewMigrator(container.DB()).Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Database %s at schema version %d\n", common.GetGlobalConfig().DBPath(), version)
			return nil
		},
	}
}
