package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
)

// Metrics records run and stage counters. A nil *Metrics records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	stages        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewMetrics registers the runner collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procrunner_runs_total",
				Help: "Completed Run invocations by result.",
			},
			[]string{"source", "result"},
		),
		stages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procrunner_stages_total",
				Help: "Dispatched stages by outcome.",
			},
			[]string{"source", "stage", "outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procrunner_stage_duration_seconds",
				Help:    "Time spent inside a stage handler.",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 30, 120, 600},
			},
			[]string{"source", "stage"},
		),
	}
}

func (m *Metrics) observeRun(source string, result Result) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(source, result.String()).Inc()
}

func (m *Metrics) observeStage(source string, stage process.Stage, outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(source, string(stage), outcome.String()).Inc()
	m.stageDuration.WithLabelValues(source, string(stage)).Observe(elapsed.Seconds())
}
