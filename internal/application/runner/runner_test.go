package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/procrunner/internal/app"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/persistence/sqlite"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/repository/mock"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/transaction"
)

const testSource = "test"

type memoryStores struct {
	states  *mock.MockProcessStateRepository
	configs *mock.MockSourceConfigRepository
}

func newMemoryStores() memoryStores {
	return memoryStores{
		states:  mock.NewMockProcessStateRepository(),
		configs: mock.NewMockSourceConfigRepository(),
	}
}

func (s memoryStores) deps() Deps {
	return Deps{States: s.states, Configs: s.configs}
}

func definition(handlers map[process.Stage]Handler) Definition {
	reg := NewStageRegistry()
	for stage, h := range handlers {
		reg.MustRegister(stage, h)
	}
	return Definition{
		Source:        testSource,
		DefaultConfig: process.Payload{"chunk_size": 10},
		Stages:        reg,
	}
}

func newTestRunner(t *testing.T, def Definition, deps Deps, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithLogger(app.NopLogger())}, opts...)
	r, err := New(def, deps, opts...)
	require.NoError(t, err)
	return r
}

func latest(t *testing.T, repo repository.ProcessStateRepository) *process.ProcessState {
	t.Helper()
	st, err := repo.FindLatest(context.Background(), testSource)
	require.NoError(t, err)
	return st
}

func exceptionOf(t *testing.T, st *process.ProcessState) map[string]any {
	t.Helper()
	exc, ok := st.State["exception"].(map[string]any)
	require.True(t, ok, "state.exception missing: %v", st.State)
	return exc
}

func TestRun_FinishOnInitialStage(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			return r.Finish()
		},
	})

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result)
	assert.True(t, result.Succeeded())

	st := latest(t, stores.states)
	assert.Equal(t, process.StatusSuccess, st.Status)
	// create=0, IN_PROGRESS=1, SUCCESS=2
	assert.Equal(t, int64(2), st.Version)
}

func TestRun_HandlerErrorPersistsFailure(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			return errors.New("boom")
		},
	})

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, result)
	assert.False(t, result.Succeeded())

	st := latest(t, stores.states)
	assert.Equal(t, process.StatusFailed, st.Status)
	exc := exceptionOf(t, st)
	assert.Equal(t, "boom", exc["message"])
	assert.Contains(t, exc["traceback"], "boom")
	assert.Contains(t, exc["traceback"], "runner")
}

func TestRun_StaleWriterYields(t *testing.T) {
	db := openTestDB(t)
	states := sqlite.NewProcessStateRepository(db)
	deps := Deps{States: states, Configs: sqlite.NewSourceConfigRepository(db)}
	ctx := context.Background()

	// Bring a run to IN_PROGRESS at stage A, version 3
	st, err := states.Create(ctx, testSource, "A")
	require.NoError(t, err)
	st.Status = process.StatusInProgress
	for i := 0; i < 3; i++ {
		ok, err := states.VersionedSave(ctx, st, process.NewFieldSet(process.FieldStatus))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, int64(3), st.Version)

	loadedX, err := states.Find(ctx, st.ID)
	require.NoError(t, err)
	loadedY, err := states.Find(ctx, st.ID)
	require.NoError(t, err)

	advanceTo := func(next process.Stage) Handler {
		return func(ctx context.Context, r *Runner) error {
			return r.Advance(ctx, next, nil)
		}
	}
	defX := Definition{Source: testSource, InitialStage: "A", Stages: NewStageRegistry().MustRegister("A", advanceTo("B"))}
	defY := Definition{Source: testSource, InitialStage: "A", Stages: NewStageRegistry().MustRegister("A", advanceTo("C"))}

	x := newTestRunner(t, defX, deps, WithMaxRuns(1))
	result, err := x.Run(ctx, loadedX)
	require.NoError(t, err)
	assert.Equal(t, ResultIncomplete, result)

	y := newTestRunner(t, defY, deps)
	result, err = y.Run(ctx, loadedY)
	require.NoError(t, err)
	assert.Equal(t, ResultYielded, result)
	assert.False(t, result.Succeeded())

	persisted, err := states.Find(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), persisted.Version)
	assert.Equal(t, process.Stage("B"), persisted.Stage)
	assert.Equal(t, process.StatusInProgress, persisted.Status)
}

func TestRunNextStage_TerminalStatesAreNotMutated(t *testing.T) {
	tests := []struct {
		name    string
		status  process.Status
		outcome Outcome
	}{
		{"success is finished", process.StatusSuccess, OutcomeFinished},
		{"failed is refused", process.StatusFailed, OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := newMemoryStores()
			called := false
			def := definition(map[process.Stage]Handler{
				process.StageInitial: func(ctx context.Context, r *Runner) error {
					called = true
					return nil
				},
			})

			st, err := stores.states.Create(context.Background(), testSource, process.StageInitial)
			require.NoError(t, err)
			st.Status = tt.status
			st.Version = 7
			stores.states.Put(st)

			r := newTestRunner(t, def, stores.deps())
			require.NoError(t, r.initialize(context.Background(), st))

			for i := 0; i < 3; i++ {
				outcome, err := r.runNextStage(context.Background())
				require.NoError(t, err)
				assert.Equal(t, tt.outcome, outcome)
			}

			assert.False(t, called)
			assert.Equal(t, 0, stores.states.SaveCount())
			persisted := latest(t, stores.states)
			assert.Equal(t, int64(7), persisted.Version)
			assert.Equal(t, tt.status, persisted.Status)
		})
	}
}

func TestRun_ResumeFailedRunIsRefused(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error { return r.Finish() },
	})

	st, err := stores.states.Create(context.Background(), testSource, process.StageInitial)
	require.NoError(t, err)
	st.Status = process.StatusFailed
	stores.states.Put(st)

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, result)
	assert.Equal(t, process.StatusFailed, latest(t, stores.states).Status)
}

func TestInitialize_ReusesExistingConfig(t *testing.T) {
	db := openTestDB(t)
	configs := sqlite.NewSourceConfigRepository(db)
	deps := Deps{States: sqlite.NewProcessStateRepository(db), Configs: configs}
	txm := transaction.NewSQLiteTransactionManager(db)

	var seen []process.Payload
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			seen = append(seen, r.Config())
			return r.Finish()
		},
	})

	for i := 0; i < 2; i++ {
		r := newTestRunner(t, def, deps, WithTransactionManager(txm))
		result, err := r.Run(context.Background(), nil)
		require.NoError(t, err)
		require.Equal(t, ResultSuccess, result)
	}

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM process_source_configs WHERE source = ?`, testSource).Scan(&rows))
	assert.Equal(t, 1, rows)

	_, created, err := configs.GetOrCreate(context.Background(), testSource, process.Payload{"chunk_size": 99})
	require.NoError(t, err)
	assert.False(t, created)

	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
	assert.EqualValues(t, 10, seen[1].Int("chunk_size", 0))
}

func TestRun_UnknownStageFailsOnce(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error { return r.Finish() },
	})

	st, err := stores.states.Create(context.Background(), testSource, "RENAMED_STAGE")
	require.NoError(t, err)

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, result)

	persisted := latest(t, stores.states)
	assert.Equal(t, process.StatusFailed, persisted.Status)
	assert.Contains(t, exceptionOf(t, persisted)["message"], "RENAMED_STAGE")
	// IN_PROGRESS then FAILED
	assert.Equal(t, 2, stores.states.SaveCount())

	failed, err := stores.states.List(context.Background(), repository.ProcessStateFilter{Statuses: []process.Status{process.StatusFailed}})
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestRun_PartialStatesAccumulate(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			return r.Advance(ctx, "SECOND", process.Payload{"a": 1})
		},
		"SECOND": func(ctx context.Context, r *Runner) error {
			if err := r.MergeState(ctx, process.Payload{"b": 2}); err != nil {
				return err
			}
			return r.Finish()
		},
	})

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, result)

	st := latest(t, stores.states)
	assert.Equal(t, process.Payload{"a": 1, "b": 2}, st.State)
	assert.Equal(t, process.Stage("SECOND"), st.Stage)
}

func TestRun_PanicIsRecordedAsFailure(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			panic("kaboom")
		},
	})

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, result)

	exc := exceptionOf(t, latest(t, stores.states))
	assert.Equal(t, "panic: kaboom", exc["message"])
	assert.Contains(t, exc["traceback"], "goroutine")
}

func TestRun_DebugModePropagates(t *testing.T) {
	boom := errors.New("boom")

	t.Run("error", func(t *testing.T) {
		stores := newMemoryStores()
		def := definition(map[process.Stage]Handler{
			process.StageInitial: func(ctx context.Context, r *Runner) error {
				if err := r.MergeState(ctx, process.Payload{"touched": true}); err != nil {
					return err
				}
				return fmt.Errorf("stage failed: %w", boom)
			},
		})

		result, err := newTestRunner(t, def, stores.deps(), WithDebug(true)).Run(context.Background(), nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, ResultFailed, result)

		st := latest(t, stores.states)
		assert.Equal(t, process.StatusInProgress, st.Status)
		assert.Equal(t, true, st.State["touched"])
		assert.NotContains(t, st.State, "exception")
	})

	t.Run("panic", func(t *testing.T) {
		stores := newMemoryStores()
		def := definition(map[process.Stage]Handler{
			process.StageInitial: func(ctx context.Context, r *Runner) error {
				panic("kaboom")
			},
		})

		r := newTestRunner(t, def, stores.deps(), WithDebug(true))
		assert.PanicsWithValue(t, "kaboom", func() {
			_, _ = r.Run(context.Background(), nil)
		})
	})
}

func TestRun_BudgetExhaustion(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			n := r.State().State.Int("loops", 0)
			return r.MergeState(ctx, process.Payload{"loops": n + 1})
		},
	})

	result, err := newTestRunner(t, def, stores.deps(), WithMaxRuns(5)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultIncomplete, result)

	st := latest(t, stores.states)
	assert.Equal(t, process.StatusInProgress, st.Status)
	assert.Equal(t, 5, st.State.Int("loops", 0))
}

func TestRun_ContextCancellation(t *testing.T) {
	stores := newMemoryStores()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			cancel()
			return nil
		},
	})

	result, err := newTestRunner(t, def, stores.deps()).Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ResultIncomplete, result)
	assert.Equal(t, process.StatusInProgress, latest(t, stores.states).Status)
}

func TestRun_HandlerReturningContextErrorIsNotFailure(t *testing.T) {
	stores := newMemoryStores()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			cancel()
			return fmt.Errorf("download: %w", ctx.Err())
		},
	})

	result, err := newTestRunner(t, def, stores.deps()).Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ResultIncomplete, result)
	assert.Equal(t, process.StatusInProgress, latest(t, stores.states).Status)
}

func TestRun_ConcurrentFinishYields(t *testing.T) {
	stores := newMemoryStores()
	saves := 0
	stores.states.BeforeSave = func(stored *process.ProcessState) {
		saves++
		if saves == 2 {
			// another worker writes between our load and our SUCCESS write
			stored.Version++
		}
	}
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error { return r.Finish() },
	})

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultYielded, result)
	assert.Equal(t, process.StatusInProgress, latest(t, stores.states).Status)
}

func TestRun_InitializationFailure(t *testing.T) {
	t.Run("without state", func(t *testing.T) {
		stores := newMemoryStores()
		stores.states.CreateErr = errors.New("disk full")
		def := definition(map[process.Stage]Handler{
			process.StageInitial: func(ctx context.Context, r *Runner) error { return r.Finish() },
		})

		result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), nil)
		assert.ErrorContains(t, err, "disk full")
		assert.Equal(t, ResultFailed, result)
	})

	t.Run("with state", func(t *testing.T) {
		stores := newMemoryStores()
		stores.configs.Err = errors.New("config table locked")
		def := definition(map[process.Stage]Handler{
			process.StageInitial: func(ctx context.Context, r *Runner) error { return r.Finish() },
		})
		st, err := stores.states.Create(context.Background(), testSource, process.StageInitial)
		require.NoError(t, err)

		result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), st)
		require.NoError(t, err)
		assert.Equal(t, ResultFailed, result)

		persisted := latest(t, stores.states)
		assert.Equal(t, process.StatusFailed, persisted.Status)
		assert.Contains(t, exceptionOf(t, persisted)["message"], "config table locked")
	})
}

func TestRun_SourceMismatch(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error { return r.Finish() },
	})
	st, err := stores.states.Create(context.Background(), "other", process.StageInitial)
	require.NoError(t, err)

	result, err := newTestRunner(t, def, stores.deps()).Run(context.Background(), st)
	assert.Error(t, err)
	assert.Equal(t, ResultFailed, result)
	assert.Equal(t, 0, stores.states.SaveCount())
}

func TestTransaction_RollbackRestoresMemory(t *testing.T) {
	db := openTestDB(t)
	states := sqlite.NewProcessStateRepository(db)
	deps := Deps{States: states, Configs: sqlite.NewSourceConfigRepository(db)}
	txm := transaction.NewSQLiteTransactionManager(db)

	errMerge := errors.New("merge failed")
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			return r.Transaction(ctx, func(txCtx context.Context) error {
				if err := r.MergeState(txCtx, process.Payload{"merge_offset": 100}); err != nil {
					return err
				}
				return errMerge
			})
		},
	})

	result, err := newTestRunner(t, def, deps, WithTransactionManager(txm)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, result)

	st := latest(t, states)
	assert.Equal(t, process.StatusFailed, st.Status)
	assert.NotContains(t, st.State, "merge_offset")
	assert.Equal(t, "merge failed", exceptionOf(t, st)["message"])
	// create=0, IN_PROGRESS=1, FAILED=2; the rolled back merge left no trace
	assert.Equal(t, int64(2), st.Version)
}

func TestUpdateState(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error { return nil },
	})
	r := newTestRunner(t, def, stores.deps())
	ctx := context.Background()
	require.NoError(t, r.initialize(ctx, nil))

	t.Run("empty update is a no-op", func(t *testing.T) {
		require.NoError(t, r.UpdateState(ctx, Update{}))
		require.NoError(t, r.UpdateState(ctx, Update{PartialState: process.Payload{}}))
		assert.Equal(t, 0, stores.states.SaveCount())
	})

	t.Run("state and partial state conflict", func(t *testing.T) {
		err := r.UpdateState(ctx, Update{State: process.Payload{"a": 1}, PartialState: process.Payload{"b": 2}})
		assert.ErrorIs(t, err, ErrConflictingUpdate)
	})

	t.Run("only supplied fields are written", func(t *testing.T) {
		stage := process.Stage("NEXT")
		require.NoError(t, r.UpdateState(ctx, Update{Stage: &stage}))

		st := latest(t, stores.states)
		assert.Equal(t, stage, st.Stage)
		assert.Equal(t, process.StatusNew, st.Status)
		assert.Equal(t, int64(1), st.Version)
		assert.Equal(t, int64(1), r.State().Version)
	})

	t.Run("state replaces payload", func(t *testing.T) {
		require.NoError(t, r.MergeState(ctx, process.Payload{"old": true}))
		require.NoError(t, r.UpdateState(ctx, Update{State: process.Payload{"new": true}}))
		assert.Equal(t, process.Payload{"new": true}, latest(t, stores.states).State)
	})

	t.Run("backwards transition is rejected", func(t *testing.T) {
		success := process.StatusSuccess
		require.NoError(t, r.UpdateState(ctx, Update{Status: &success}))

		inProgress := process.StatusInProgress
		err := r.UpdateState(ctx, Update{Status: &inProgress})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, process.StatusSuccess, r.State().Status)
	})

	t.Run("stale version leaves memory untouched", func(t *testing.T) {
		before := r.State()
		stores.states.BeforeSave = func(stored *process.ProcessState) { stored.Version++ }
		defer func() { stores.states.BeforeSave = nil }()

		err := r.MergeState(ctx, process.Payload{"late": true})
		assert.ErrorIs(t, err, ErrParallelExecution)
		assert.Equal(t, before, r.State())
	})

	t.Run("save errors are not version conflicts", func(t *testing.T) {
		stores.states.SaveErr = errors.New("database is locked")
		defer func() { stores.states.SaveErr = nil }()

		err := r.MergeState(ctx, process.Payload{"x": 1})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrParallelExecution)
	})
}

func TestAccessorsReturnCopies(t *testing.T) {
	stores := newMemoryStores()
	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			r.Config()["chunk_size"] = 1
			r.State().State["injected"] = true
			assert.Equal(t, testSource, r.Source())
			assert.NotNil(t, r.Logger())
			return r.Finish()
		},
	})

	r := newTestRunner(t, def, stores.deps())
	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 10, r.Config().Int("chunk_size", 0))
	assert.NotContains(t, r.State().State, "injected")
}

func TestNew_Validation(t *testing.T) {
	stores := newMemoryStores()
	valid := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error { return nil },
	})

	_, err := New(valid, Deps{})
	assert.Error(t, err)

	_, err = New(valid, stores.deps(), WithMaxRuns(0))
	assert.Error(t, err)

	_, err = New(Definition{Source: testSource, Stages: NewStageRegistry()}, stores.deps())
	assert.Error(t, err)

	r, err := New(valid, stores.deps())
	require.NoError(t, err)
	assert.Equal(t, MaxRuns, r.maxRuns)
}

func TestMetrics(t *testing.T) {
	stores := newMemoryStores()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	def := definition(map[process.Stage]Handler{
		process.StageInitial: func(ctx context.Context, r *Runner) error {
			return r.Advance(ctx, "DONE", nil)
		},
		"DONE": func(ctx context.Context, r *Runner) error { return r.Finish() },
	})

	r := newTestRunner(t, def, stores.deps(), WithMetrics(metrics))
	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(testSource, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stages.WithLabelValues(testSource, "INITIAL", "continue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stages.WithLabelValues(testSource, "DONE", "finished")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.stageDuration))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
