// Package metrics registers the Prometheus collectors the HTTP surface's
// /metrics endpoint serves: per-rollup sync lag and windows processed,
// the natural extension of the sync-lag concept already in §4.7.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SyncLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rollup_indexer",
		Name:      "sync_lag_blocks",
		Help:      "head block number minus last indexed block, per rollup",
	}, []string{"rollup_id", "network"})

	WindowsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollup_indexer",
		Name:      "windows_processed_total",
		Help:      "number of index windows successfully processed, per rollup",
	}, []string{"rollup_id", "network"})
)

func init() {
	prometheus.MustRegister(SyncLag, WindowsProcessed)
}
