package observability

import (
	"fmt"
	"time"

	"github.com/arkilian/driftguard/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "driftguard"

// RunMetrics holds the Prometheus metrics of driftguard runs. Each instance
// owns its registry so it can be exported to a node-exporter textfile.
type RunMetrics struct {
	registry *prometheus.Registry

	// ModelsTotal counts validated models.
	// Labels: mode (data, schema), status (Pass, Fail, error)
	ModelsTotal *prometheus.CounterVec

	// ModelDuration measures per-model validation time.
	// Labels: mode
	ModelDuration *prometheus.HistogramVec

	// MismatchedRows counts content mismatches found by data diffs.
	MismatchedRows prometheus.Counter

	// RunsTotal counts runs by final status.
	// Labels: status (completed, precheck_failed, scope_violation, ...)
	RunsTotal *prometheus.CounterVec

	// LastVerdict is 1 when the last completed run passed, 0 otherwise.
	LastVerdict prometheus.Gauge

	// LastRunTimestamp is the unix time of the last run end.
	LastRunTimestamp prometheus.Gauge
}

// NewRunMetrics creates and registers the run metrics on a fresh registry.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		ModelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "models_total",
			Help:      "Validated models by mode and status",
		}, []string{"mode", "status"}),
		ModelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "model_duration_seconds",
			Help:      "Per-model validation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"mode"}),
		MismatchedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "mismatched_rows_total",
			Help:      "Rows reported as mismatching by data diffs",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Runs by final status",
		}, []string{"status"}),
		LastVerdict: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_verdict",
			Help:      "1 if the last completed run passed, 0 otherwise",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run ended",
		}),
	}

	m.registry.MustRegister(
		m.ModelsTotal,
		m.ModelDuration,
		m.MismatchedRows,
		m.RunsTotal,
		m.LastVerdict,
		m.LastRunTimestamp,
	)
	return m
}

// Registry returns the registry holding the run metrics.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordModel records one model validation. status is the outcome status,
// or "error" when the model could not be validated.
func (m *RunMetrics) RecordModel(mode, status string, elapsed time.Duration) {
	m.ModelsTotal.WithLabelValues(mode, status).Inc()
	m.ModelDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// RecordMismatches adds content mismatches.
func (m *RunMetrics) RecordMismatches(n int) {
	if n > 0 {
		m.MismatchedRows.Add(float64(n))
	}
}

// RecordRun records a finished run and, when present, its verdict.
func (m *RunMetrics) RecordRun(status string, verdict *types.Verdict, end time.Time) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.LastRunTimestamp.Set(float64(end.Unix()))
	if verdict != nil {
		if verdict.Pass {
			m.LastVerdict.Set(1)
		} else {
			m.LastVerdict.Set(0)
		}
	}
}

// WriteTextfile writes the metrics in the Prometheus text format, for the
// node-exporter textfile collector.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("observability: failed to write metrics to %s: %w", path, err)
	}
	return nil
}
