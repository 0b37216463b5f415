// Package metrics exposes Prometheus metrics for reconciliation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoadmin-control/internal/reconcile"
)

// Run outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeDryRun    = "dry_run"
	OutcomeFailed    = "failed"
)

// Recorder holds the reconciliation metrics on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with a fresh registry that also carries the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geoadmin",
				Subsystem: "reconcile",
				Name:      "operations_total",
				Help:      "Records touched by reconciliation runs, by entity and operation",
			},
			[]string{"job", "entity", "operation"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geoadmin",
				Subsystem: "reconcile",
				Name:      "runs_total",
				Help:      "Reconciliation runs by outcome",
			},
			[]string{"job", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "geoadmin",
				Subsystem: "reconcile",
				Name:      "run_duration_seconds",
				Help:      "Duration of reconciliation runs in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"job"},
		),
	}
	r.registry.MustRegister(
		r.operations,
		r.runs,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordRun records the outcome and duration of a run. Operation counts are
// only recorded for committed runs; a dry run or a failed run changed nothing.
func (r *Recorder) RecordRun(job string, counter *reconcile.Counter, outcome string, took time.Duration) {
	r.runs.WithLabelValues(job, outcome).Inc()
	r.duration.WithLabelValues(job).Observe(took.Seconds())
	if outcome != OutcomeCommitted || counter == nil {
		return
	}
	counter.Each(func(entity string, op reconcile.Operation, n int) {
		r.operations.WithLabelValues(job, entity, string(op)).Add(float64(n))
	})
}

// Outcome derives the run outcome from the error and the dry-run flag.
func Outcome(err error, dryRun bool) string {
	switch {
	case err != nil:
		return OutcomeFailed
	case dryRun:
		return OutcomeDryRun
	default:
		return OutcomeCommitted
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the registry to path for the node exporter textfile
// collector. The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
