package cli

import (
	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/procrunner/internal/app/config"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/run"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/status"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/version"
)

func NewRoot() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "procrunner",
		Short:         "Resumable multi-stage process runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs
			// Priority: flags > PROCRUNNER_* env > config file > defaults
			v, err := config.NewViper(configFile)
			if err != nil {
				return err
			}
			if err := v.BindPFlag(config.KeyLogLevel, cmd.Flags().Lookup("log-level")); err != nil {
				return err
			}

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			common.SetGlobalConfig(cfg)
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./"+config.DefaultConfigFile+" when present)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")

	cmd.AddCommand(run.NewCommand())
	cmd.AddCommand(status.NewCommand())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(version.NewCommand())
	return cmd
}
