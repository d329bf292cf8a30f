// Package metrics exposes the node's Prometheus instrumentation: DAG
// admission counts, mempool occupancy, planner batch shape, and
// cross-shard transaction lifecycle counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric this node defines. The node constructs and
// registers it once at startup and holds it; no component is handed the
// Registry, so nothing in the node updates these metrics.
type Registry struct {
	BlocksAdmitted   *prometheus.CounterVec
	BlueScoreGauge   prometheus.Gauge
	MempoolSize      prometheus.Gauge
	MempoolRejected  *prometheus.CounterVec
	PlannerBatchSize prometheus.Histogram
	PlannerBatches   prometheus.Counter
	CrossShardTx     *prometheus.CounterVec
	MiningAttempts   *prometheus.CounterVec
	MiningSealed     *prometheus.CounterVec
}

// NewRegistry constructs and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BlocksAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daglayer",
			Subsystem: "blockdag",
			Name:      "blocks_admitted_total",
			Help:      "Blocks admitted to the DAG, labeled by classification.",
		}, []string{"classification"}),
		BlueScoreGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "daglayer",
			Subsystem: "blockdag",
			Name:      "max_blue_score",
			Help:      "Highest blue score observed across admitted blocks.",
		}),
		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "daglayer",
			Subsystem: "mempool",
			Name:      "resident_transactions",
			Help:      "Number of transactions currently resident in the mempool.",
		}),
		MempoolRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daglayer",
			Subsystem: "mempool",
			Name:      "admission_rejected_total",
			Help:      "Transactions rejected at mempool admission, labeled by reason.",
		}, []string{"reason"}),
		PlannerBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "daglayer",
			Subsystem: "planner",
			Name:      "batch_size",
			Help:      "Number of transactions in each independently-executed batch.",
			Buckets:   prometheus.LinearBuckets(1, 4, 10),
		}),
		PlannerBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "daglayer",
			Subsystem: "planner",
			Name:      "batches_total",
			Help:      "Total number of batches executed by the parallel planner.",
		}),
		CrossShardTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daglayer",
			Subsystem: "shard",
			Name:      "cross_shard_transactions_total",
			Help:      "Cross-shard transactions, labeled by terminal status.",
		}, []string{"status"}),
		MiningAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daglayer",
			Subsystem: "mining",
			Name:      "attempts_total",
			Help:      "Block-sealing attempts, labeled by stream.",
		}, []string{"stream"}),
		MiningSealed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daglayer",
			Subsystem: "mining",
			Name:      "sealed_total",
			Help:      "Blocks successfully sealed, labeled by stream.",
		}, []string{"stream"}),
	}

	for _, c := range []prometheus.Collector{
		r.BlocksAdmitted, r.BlueScoreGauge, r.MempoolSize, r.MempoolRejected,
		r.PlannerBatchSize, r.PlannerBatches, r.CrossShardTx,
		r.MiningAttempts, r.MiningSealed,
	} {
		reg.MustRegister(c)
	}
	return r
}
