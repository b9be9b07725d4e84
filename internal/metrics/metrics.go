// Package metrics provides Prometheus metrics for the collector service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts collection runs by source and outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector",
			Name:      "runs_total",
			Help:      "Total number of collection runs",
		},
		[]string{"source", "status"},
	)

	// RunDuration measures end-to-end run duration.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collector",
			Name:      "run_duration_seconds",
			Help:      "Duration of collection runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// JobsTotal counts records by source and fate (fetched, inserted, skipped, filtered).
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector",
			Name:      "jobs_total",
			Help:      "Job records seen, by outcome",
		},
		[]string{"source", "outcome"},
	)

	// ScheduledRunsTotal counts scheduler firings.
	ScheduledRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector",
			Name:      "scheduled_runs_total",
			Help:      "Scheduler firings by outcome (ok, error, skipped)",
		},
		[]string{"outcome"},
	)

	// BackgroundInFlight tracks collect-from runs holding a concurrency slot.
	BackgroundInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collector",
			Name:      "background_in_flight",
			Help:      "Background collection runs currently running",
		},
	)
)

// RecordRun records one collection run.
func RecordRun(source, status string, fetched, inserted, skipped, filtered int, seconds float64) {
	RunsTotal.WithLabelValues(source, status).Inc()
	RunDuration.WithLabelValues(source).Observe(seconds)
	JobsTotal.WithLabelValues(source, "fetched").Add(float64(fetched))
	JobsTotal.WithLabelValues(source, "inserted").Add(float64(inserted))
	JobsTotal.WithLabelValues(source, "skipped").Add(float64(skipped))
	JobsTotal.WithLabelValues(source, "filtered").Add(float64(filtered))
}

// RecordScheduled records the outcome of one scheduler firing.
func RecordScheduled(outcome string) {
	ScheduledRunsTotal.WithLabelValues(outcome).Inc()
}
