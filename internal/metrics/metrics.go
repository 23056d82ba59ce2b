// Package metrics holds the Prometheus collectors exported by the cache core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spicedash_build_info",
			Help: "Build information of spicedash",
		},
		[]string{"version"},
	)

	MemoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spicedash_memo_lookups_total",
			Help: "Memoized view lookups by aggregator, view and result (hit, overflow_hit, miss)",
		},
		[]string{"aggregator", "view", "result"},
	)

	ArtifactOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spicedash_cache_artifact_ops_total",
			Help: "Cache store operations by kind (save, load) and status (ok, not_found, error)",
		},
		[]string{"op", "status"},
	)

	WarmupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spicedash_warmup_task_duration_seconds",
			Help:    "Duration of warm-up tasks",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"task", "status"},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spicedash_cache_invalidations_total",
			Help: "Full cache invalidations caused by row count drift",
		},
	)
)
