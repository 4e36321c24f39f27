package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine-level counters, registered on the default registry via
// promauto. The sweeper counters are the out-of-band channel for
// background failures: the sweeper never surfaces errors to
// foreground callers.

var (
	// OpsTotal counts store operations by kind (set, get, delete, ...).
	OpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripecache_ops_total",
			Help: "Total number of store operations processed",
		},
		[]string{"op"},
	)

	// TableGrowsTotal counts slot table rehashes into larger arrays.
	TableGrowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stripecache_table_grows_total",
			Help: "Total number of slot table growth rehashes",
		},
	)

	// SweepPassesTotal counts completed sweeper passes over all shards.
	SweepPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stripecache_sweep_passes_total",
			Help: "Total number of completed expiry sweep passes",
		},
	)

	// SweptEntriesTotal counts entries reclaimed by the sweeper.
	SweptEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stripecache_swept_entries_total",
			Help: "Total number of expired entries reclaimed by the sweeper",
		},
	)

	// SweepErrorsTotal counts background sweep failures.
	SweepErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stripecache_sweep_errors_total",
			Help: "Total number of errors encountered during background sweeps",
		},
	)
)
