package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/procrunner/internal/adapter/presenter"
	"github.com/YoshitsuguKoike/procrunner/internal/app"
	"github.com/YoshitsuguKoike/procrunner/internal/application/dto"
	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
)

type options struct {
	source  string
	stateID string
	resume  bool
	debug   bool
	maxRuns int
	output  string
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a process until it finishes, fails, yields or exhausts its stage budget",
		Long: `Run drives the stages of a process source against its persisted state.

Without --state-id or --resume a fresh run is created. Exit codes:
  0  the run finished successfully
  1  the run failed (the failure is persisted in the state)
  3  another worker updated the state first; this worker yielded
  4  the stage budget ran out or the run was interrupted; resume later`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), getSignalsToHandle()...)
			defer stop()
			return execute(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Process source to run (see 'procrunner sources')")
	cmd.Flags().StringVar(&opts.stateID, "state-id", "", "Continue the run with this state ID")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Continue the latest unfinished run of the source")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Propagate stage errors and panics instead of recording them")
	cmd.Flags().IntVar(&opts.maxRuns, "max-runs", 0, "Stage budget for this invocation (default from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", presenter.FormatText, "Output format: text|json|yaml")
	_ = cmd.MarkFlagRequired("source")
	cmd.MarkFlagsMutuallyExclusive("state-id", "resume")

	return cmd
}

func execute(ctx context.Context, w io.Writer, opts *options) error {
	p, err := presenter.New(opts.output, w)
	if err != nil {
		return err
	}
	if opts.maxRuns < 0 {
		return fmt.Errorf("--max-runs must be positive, got %d", opts.maxRuns)
	}

	container, err := common.InitializeContainer(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	st, err := loadState(ctx, container.GetProcessStateRepository(), opts)
	if err != nil {
		return err
	}

	runOpts := []runner.Option{runner.WithDebug(opts.debug)}
	if opts.maxRuns > 0 {
		runOpts = append(runOpts, runner.WithMaxRuns(opts.maxRuns))
	}
	r, err := container.NewRunner(opts.source, runOpts...)
	if err != nil {
		return err
	}

	result, runErr := r.Run(ctx, st)
	summary := dto.NewRunSummaryDTO(opts.source, result, r.State(), runErr)

	if cfg := common.GetGlobalConfig(); cfg != nil {
		if err := container.WriteMetrics(cfg.MetricsFile()); err != nil {
			app.GetLogger().Warn("metrics export failed", "error", err)
		}
		if err := container.WriteHealth(cfg.HealthFile(), healthOf(summary, runErr)); err != nil {
			app.GetLogger().Warn("health export failed", "error", err)
		}
	}

	if err := p.PresentSuccess(fmt.Sprintf("%s run %s", opts.source, result), summary); err != nil {
		return err
	}

	if runErr != nil {
		code := common.ExitFailed
		if result == runner.ResultIncomplete && errors.Is(runErr, ctx.Err()) {
			code = common.ExitIncomplete
		}
		return &common.ExitError{Code: code, Err: runErr}
	}
	return common.ResultError(result)
}

// loadState returns the state to continue, or nil for a fresh run
func loadState(ctx context.Context, repo repository.ProcessStateRepository, opts *options) (*process.ProcessState, error) {
	switch {
	case opts.stateID != "":
		id, err := process.ParseStateID(opts.stateID)
		if err != nil {
			return nil, err
		}
		st, err := repo.Find(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Source != opts.source {
			return nil, fmt.Errorf("state %s belongs to source %q, not %q", id, st.Source, opts.source)
		}
		return st, nil

	case opts.resume:
		st, err := repo.FindLatest(ctx, opts.source, process.StatusNew, process.StatusInProgress)
		if errors.Is(err, repository.ErrProcessStateNotFound) {
			app.GetLogger().Info("no unfinished run to resume, starting a new one", "source", opts.source)
			return nil, nil
		}
		return st, err
	}
	return nil, nil
}

func healthOf(summary *dto.RunSummaryDTO, runErr error) app.Health {
	h := app.Health{
		Source: summary.Source,
		Result: summary.Result,
		OK:     runErr == nil && summary.Result == runner.ResultSuccess.String(),
		Error:  summary.Message,
	}
	if summary.State != nil {
		h.StateID = summary.State.ID
		h.Stage = summary.State.Stage
	}
	return h
}
