// Package metrics declares the Prometheus collectors exposed by chessdb,
// following the teacher's package-level promauto.New*Vec pattern (spec
// §2.6): one global var per metric, registered at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GamesImported counts games successfully parsed and stored by level.
var GamesImported = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chessdb_games_imported_total",
		Help: "Games imported, by level",
	},
	[]string{"level"},
)

// GamesRejected counts games dropped during import (bad FEN/SAN/move),
// by level and failure kind.
var GamesRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chessdb_games_rejected_total",
		Help: "Games rejected during import, by level and reason",
	},
	[]string{"level", "reason"},
)

// PositionsIndexed counts position entries written to a run file, by
// level.
var PositionsIndexed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chessdb_positions_indexed_total",
		Help: "Position entries indexed, by level",
	},
	[]string{"level"},
)

// QueriesServed counts completed ExecuteQuery calls, by select kind.
var QueriesServed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chessdb_queries_served_total",
		Help: "Queries served, by select",
	},
	[]string{"select"},
)

// OpenRuns is the current number of run files held open by a partition,
// by level.
var OpenRuns = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "chessdb_open_runs",
		Help: "Open run files, by level",
	},
	[]string{"level"},
)

// FilePoolInUse is the current number of pooled file handles in use.
var FilePoolInUse = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "chessdb_file_pool_in_use",
		Help: "File handles currently held by the pool",
	},
)

// QueryLatency histograms ExecuteQuery wall time, by select kind.
var QueryLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chessdb_query_latency_seconds",
		Help:    "ExecuteQuery latency",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
	},
	[]string{"select"},
)

// MergeLatency histograms MergeAll wall time, by level.
var MergeLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chessdb_merge_latency_seconds",
		Help:    "MergeAll latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
	},
	[]string{"level"},
)
