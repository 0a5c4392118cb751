package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/procrunner/internal/app"
	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
	"github.com/YoshitsuguKoike/procrunner/internal/application/workflow"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
)

type serveOptions struct {
	sources  []string
	interval time.Duration
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run process sources in parallel, one worker per source",
		Long: `Serve starts one worker per source. Each cycle continues the latest
unfinished run of the source or starts a new one. After a run finishes, fails
or yields the worker waits for --interval; with --interval 0 it stops instead.
SIGINT or SIGTERM stops all workers; interrupted runs stay resumable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.sources, "source", "s", nil, "Sources to serve (default: all registered)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 10*time.Minute, "Pause between finished runs, 0 to stop after one")

	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	container, err := common.InitializeContainer(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	catalog := container.GetCatalog()
	sources := opts.sources
	if len(sources) == 0 {
		sources = catalog.Sources()
	}

	wm := workflow.NewWorkflowManager(ctx, app.GetLogger())
	for _, source := range sources {
		def, ok := catalog.Get(source)
		if !ok {
			return fmt.Errorf("unknown process source %q (known: %v)", source, catalog.Sources())
		}
		source := source
		wf := workflow.NewProcessWorkflow(def, container.GetProcessStateRepository(), func() (*runner.Runner, error) {
			return container.NewRunner(source)
		})
		if err := wm.RegisterWorkflow(wf, workflow.WorkflowConfig{Name: source, Enabled: true, Interval: opts.interval}); err != nil {
			return err
		}
	}

	if err := wm.RunAll(); err != nil {
		return err
	}
	// returns when every worker stopped on its own or ctx was cancelled
	wm.Wait()
	wm.Stop()
	wm.LogStats()

	if err := container.WriteMetrics(common.GetGlobalConfig().MetricsFile()); err != nil {
		app.GetLogger().Warn("metrics export failed", "error", err)
	}
	return nil
}
