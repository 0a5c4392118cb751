package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/YoshitsuguKoike/procrunner/internal/app"
	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
)

// WorkflowManager manages multiple workflows running in parallel
type WorkflowManager struct {
	workflows map[string]WorkflowRunner
	configs   map[string]WorkflowConfig
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mutex     sync.RWMutex

	// Statistics
	stats map[string]*WorkflowStats

	log app.Logger
}

// NewWorkflowManager creates a new workflow manager. Cancelling ctx stops
// every workflow the same way Stop does.
func NewWorkflowManager(ctx context.Context, logger app.Logger) *WorkflowManager {
	ctx, cancel := context.WithCancel(ctx)

	if logger == nil {
		logger = app.NopLogger()
	}

	return &WorkflowManager{
		workflows: make(map[string]WorkflowRunner),
		configs:   make(map[string]WorkflowConfig),
		stats:     make(map[string]*WorkflowStats),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger,
	}
}

// RegisterWorkflow registers a new workflow runner
func (wm *WorkflowManager) RegisterWorkflow(wr WorkflowRunner, config WorkflowConfig) error {
	wm.mutex.Lock()
	defer wm.mutex.Unlock()

	name := wr.Name()
	if _, exists := wm.workflows[name]; exists {
		return fmt.Errorf("workflow %s already registered", name)
	}
	if config.Interval < 0 {
		return fmt.Errorf("workflow %s: interval must not be negative", name)
	}

	wm.workflows[name] = wr
	wm.configs[name] = config
	wm.stats[name] = &WorkflowStats{
		Name: name,
	}

	wm.log.Info("registered workflow", "workflow", name, "description", wr.Description(), "interval", config.Interval)
	return nil
}

// GetWorkflowNames returns the registered workflow names in sorted order
func (wm *WorkflowManager) GetWorkflowNames() []string {
	wm.mutex.RLock()
	defer wm.mutex.RUnlock()

	names := make([]string, 0, len(wm.workflows))
	for name := range wm.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetEnabledWorkflows returns the enabled workflow names in sorted order
func (wm *WorkflowManager) GetEnabledWorkflows() []string {
	wm.mutex.RLock()
	defer wm.mutex.RUnlock()

	var enabled []string
	for name, config := range wm.configs {
		if config.Enabled {
			enabled = append(enabled, name)
		}
	}
	sort.Strings(enabled)
	return enabled
}

// RunWorkflow starts a single workflow in its own goroutine
func (wm *WorkflowManager) RunWorkflow(name string) error {
	wm.mutex.RLock()
	wr, runnerExists := wm.workflows[name]
	config := wm.configs[name]
	stats := wm.stats[name]
	wm.mutex.RUnlock()

	if !runnerExists {
		return fmt.Errorf("workflow %s not found", name)
	}
	if !config.Enabled {
		return fmt.Errorf("workflow %s is disabled", name)
	}

	// Check if already running
	stats.mutex.Lock()
	if stats.IsRunning {
		stats.mutex.Unlock()
		return fmt.Errorf("workflow %s is already running", name)
	}
	stats.IsRunning = true
	stats.mutex.Unlock()

	wm.wg.Add(1)
	go func() {
		defer wm.wg.Done()
		defer func() {
			stats.mutex.Lock()
			stats.IsRunning = false
			stats.mutex.Unlock()
		}()

		wm.runWorkflowLoop(wr, config, stats)
	}()

	wm.log.Info("started workflow", "workflow", name)
	return nil
}

// runWorkflowLoop runs cycles until the manager stops. A cycle that ran out of
// stage budget is followed immediately by the next one; any other result
// waits for the configured interval.
func (wm *WorkflowManager) runWorkflowLoop(wr WorkflowRunner, config WorkflowConfig, stats *WorkflowStats) {
	log := wm.log.With("workflow", wr.Name())

	for {
		if wm.ctx.Err() != nil {
			log.Info("workflow stopping due to shutdown signal")
			return
		}

		startTime := time.Now()

		stats.mutex.Lock()
		stats.TotalExecutions++
		executionNum := stats.TotalExecutions
		stats.LastExecution = startTime
		stats.mutex.Unlock()

		log.Debug("starting execution cycle", "execution", executionNum)
		result, err := wr.Run(wm.ctx)
		duration := time.Since(startTime)
		stats.record(result, err, duration)

		if err != nil {
			log.Warn("execution failed", "execution", executionNum, "error", err)
		} else {
			log.Debug("execution completed", "execution", executionNum, "result", result.String(), "took", duration)
		}

		if err == nil && result == runner.ResultIncomplete {
			continue
		}
		if config.Interval == 0 {
			log.Info("workflow finished", "result", result.String())
			return
		}

		log.Debug("next execution scheduled", "in", config.Interval)
		waitTimer := time.NewTimer(config.Interval)
		select {
		case <-wm.ctx.Done():
			waitTimer.Stop()
			log.Info("workflow stopping due to shutdown signal")
			return
		case <-waitTimer.C:
		}
	}
}

// RunAll starts all enabled workflows
func (wm *WorkflowManager) RunAll() error {
	enabled := wm.GetEnabledWorkflows()
	if len(enabled) == 0 {
		return fmt.Errorf("no enabled workflows found")
	}

	wm.log.Info("starting enabled workflows", "count", len(enabled), "workflows", enabled)

	for _, name := range enabled {
		if err := wm.RunWorkflow(name); err != nil {
			wm.log.Warn("failed to start workflow", "workflow", name, "error", err)
		}
	}

	return nil
}

// Wait blocks until every started workflow has returned
func (wm *WorkflowManager) Wait() {
	wm.wg.Wait()
}

// Stop gracefully stops all running workflows
func (wm *WorkflowManager) Stop() {
	wm.log.Info("stopping all workflows")
	wm.cancel()
	wm.wg.Wait()
	wm.log.Info("all workflows stopped")
}

// GetStats returns statistics for all workflows
func (wm *WorkflowManager) GetStats() map[string]*WorkflowStats {
	wm.mutex.RLock()
	defer wm.mutex.RUnlock()

	result := make(map[string]*WorkflowStats, len(wm.stats))
	for name, stats := range wm.stats {
		result[name] = stats.snapshot()
	}
	return result
}

// LogStats writes one summary line per workflow
func (wm *WorkflowManager) LogStats() {
	for _, name := range wm.GetWorkflowNames() {
		stat := wm.GetStats()[name]
		keyvals := []interface{}{
			"workflow", name,
			"executions", stat.TotalExecutions,
			"succeeded", stat.SuccessfulRuns,
			"failed", stat.FailedRuns,
			"yielded", stat.YieldedRuns,
			"incomplete", stat.IncompleteRuns,
			"average_duration", stat.AverageDuration,
		}
		if stat.LastError != nil {
			keyvals = append(keyvals, "last_error", stat.LastError)
		}
		wm.log.Info("workflow statistics", keyvals...)
	}
}
