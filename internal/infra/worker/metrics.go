package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/EngSayh/Fixzit-sub003/internal/pkg/config"
)

// NotifierMetrics exposes configuration health and dead-letter reprocess job
// metrics for the worker process.
//
// Embedded from ConfigMetrics:
//   - notifier_config_load_timestamp
//   - notifier_config_validation_errors_total{field}
//   - notifier_config_fallbacks_total{field}
//   - notifier_config_fallback_active
type NotifierMetrics struct {
	*config.ConfigMetrics

	// ReprocessRunsTotal counts reprocess job runs by status (started, success, failure).
	ReprocessRunsTotal *prometheus.CounterVec

	// ReprocessDurationSeconds observes how long each run took.
	ReprocessDurationSeconds prometheus.Histogram

	// ReprocessEntriesTotal counts entries handled per run by result
	// (resolved, failed, skipped).
	ReprocessEntriesTotal *prometheus.CounterVec

	// ReprocessLastSuccessTimestamp is the Unix time of the last successful run.
	ReprocessLastSuccessTimestamp prometheus.Gauge
}

// NewNotifierMetrics creates and registers the worker metrics on the default
// registry. Calling it twice in one process panics.
func NewNotifierMetrics() *NotifierMetrics {
	return &NotifierMetrics{
		ConfigMetrics: config.NewConfigMetrics("notifier"),

		ReprocessRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_reprocess_runs_total",
			Help: "Total number of dead-letter reprocess runs by status",
		}, []string{"status"}),

		ReprocessDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "notifier_reprocess_duration_seconds",
			Help:    "Duration of dead-letter reprocess runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300},
		}),

		ReprocessEntriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_reprocess_entries_total",
			Help: "Total number of dead-letter entries handled by reprocess runs",
		}, []string{"result"}),

		ReprocessLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "notifier_reprocess_last_success_timestamp",
			Help: "Unix timestamp of the last successful reprocess run",
		}),
	}
}

// RecordRun increments the run counter for status.
func (m *NotifierMetrics) RecordRun(status string) {
	m.ReprocessRunsTotal.WithLabelValues(status).Inc()
}

// RecordDuration observes a run duration in seconds.
func (m *NotifierMetrics) RecordDuration(seconds float64) {
	m.ReprocessDurationSeconds.Observe(seconds)
}

// RecordEntries adds the per-result entry counts of one run.
func (m *NotifierMetrics) RecordEntries(resolved, failed, skipped int) {
	m.ReprocessEntriesTotal.WithLabelValues("resolved").Add(float64(resolved))
	m.ReprocessEntriesTotal.WithLabelValues("failed").Add(float64(failed))
	m.ReprocessEntriesTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordLastSuccess stamps the current time as the last successful run.
func (m *NotifierMetrics) RecordLastSuccess() {
	m.ReprocessLastSuccessTimestamp.SetToCurrentTime()
}
