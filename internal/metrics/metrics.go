// Package metrics registers the conductor's prometheus collectors,
// grounded on boskos/cmd/boskos/boskos.go and boskos/metrics/metrics.go's
// prometheus.MustRegister wiring.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ReconcileTotal counts executed actions by kind, so dashboards can
	// tell a burst of launches apart from a burst of reaps.
	ReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "train_conductor_reconcile_actions_total",
		Help: "Number of reconcile actions executed, by action kind.",
	}, []string{"action"})

	// ReconcileErrorsTotal counts Reconcile calls that returned an
	// error; the event loop and the full sweep log those errors and
	// keep running.
	ReconcileErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "train_conductor_reconcile_errors_total",
		Help: "Number of reconcile attempts that returned an error.",
	})

	// FullSweepDurationSeconds times each full sweep, whether triggered
	// by the periodic timer or a stale-watch recovery.
	FullSweepDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "train_conductor_full_sweep_duration_seconds",
		Help:    "Duration of a complete registry+orchestrator sweep.",
		Buckets: prometheus.DefBuckets,
	})

	// QueueDepth reports the current size of the event loop's
	// coalescing work queue.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "train_conductor_queue_depth",
		Help: "Number of distinct job ids currently pending reconcile.",
	})

	// WatchReconnectsTotal counts orchestrator watch (re)connection
	// attempts, including ones short-circuited by the circuit breaker.
	WatchReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "train_conductor_watch_reconnects_total",
		Help: "Number of orchestrator watch stream (re)connection attempts.",
	})
)

func init() {
	prometheus.MustRegister(
		ReconcileTotal,
		ReconcileErrorsTotal,
		FullSweepDurationSeconds,
		QueueDepth,
		WatchReconnectsTotal,
	)
}
