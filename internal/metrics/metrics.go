// Package metrics holds the Prometheus collectors for the workflow engine.
package metrics

import (
	"github.com/me/flowgraph/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowgraph"

// Metrics holds the engine's collectors. Register them with MustRegister
// before use.
type Metrics struct {
	workflowsSaved      *prometheus.CounterVec
	cyclesDetected      prometheus.Counter
	buildDuration       prometheus.Histogram
	batchExpansions     prometheus.Counter
	batchRuns           prometheus.Histogram
	batchMismatches     prometheus.Counter
	provenanceFailures  prometheus.Counter
	invocationsResolved *prometheus.CounterVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		workflowsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "saved_total",
				Help:      "Total number of workflow saves.",
			},
			[]string{"result"}, // "runnable" or "not_runnable"
		),
		cyclesDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "cycles_detected_total",
				Help:      "Total number of saved or extracted graphs found to contain cycles.",
			},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "build_duration_seconds",
				Help:      "Duration of graph builds in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		batchExpansions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "expansions_total",
				Help:      "Total number of run requests expanded.",
			},
		),
		batchRuns: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "runs_per_expansion",
				Help:      "Number of runs produced by one run request.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		batchMismatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "mismatched_inputs_total",
				Help:      "Total number of run requests rejected for mismatched multi-input lengths.",
			},
		),
		provenanceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provenance",
				Name:      "failures_total",
				Help:      "Total number of history reconstructions abandoned for ambiguous collection provenance.",
			},
		),
		invocationsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "invocations_total",
				Help:      "Total number of queued invocations moved to a new state.",
			},
			[]string{"state"},
		),
	}
}

// MustRegister registers the collectors with the given registry.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.workflowsSaved,
		m.cyclesDetected,
		m.buildDuration,
		m.batchExpansions,
		m.batchRuns,
		m.batchMismatches,
		m.provenanceFailures,
		m.invocationsResolved,
	)
}

// ObserveSave records a saved graph.
func (m *Metrics) ObserveSave(g *model.Graph, durationSeconds float64) {
	result := "runnable"
	if g.HasCycles || g.HasErrors || g.Len() == 0 {
		result = "not_runnable"
	}
	m.workflowsSaved.WithLabelValues(result).Inc()
	m.buildDuration.Observe(durationSeconds)
	if g.HasCycles {
		m.cyclesDetected.Inc()
	}
}

// ObserveExtract records a graph built from history.
func (m *Metrics) ObserveExtract(g *model.Graph) {
	if g.HasCycles {
		m.cyclesDetected.Inc()
	}
}

// ObserveExpansion records a run request and how many runs it produced.
func (m *Metrics) ObserveExpansion(runs int) {
	m.batchExpansions.Inc()
	m.batchRuns.Observe(float64(runs))
}

// ObserveMismatch records a run request rejected for mismatched inputs.
func (m *Metrics) ObserveMismatch() {
	m.batchMismatches.Inc()
}

// ObserveProvenanceFailure records an abandoned reconstruction.
func (m *Metrics) ObserveProvenanceFailure() {
	m.provenanceFailures.Inc()
}

// ObserveInvocation records a dispatch loop state transition.
func (m *Metrics) ObserveInvocation(state model.InvocationState) {
	m.invocationsResolved.WithLabelValues(string(state)).Inc()
}
