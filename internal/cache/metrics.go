package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	probeHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qiime2_cache_probe_hits_total",
			Help: "Total number of invocation fingerprints served from the named pool.",
		},
	)

	probeMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qiime2_cache_probe_misses_total",
			Help: "Total number of invocation fingerprints not found in the named pool.",
		},
	)

	recycleRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qiime2_cache_recycle_rejections_total",
			Help: "Total number of indexed entries rejected as incomplete during reload.",
		},
	)
)

func init() {
	prometheus.MustRegister(probeHits)
	prometheus.MustRegister(probeMisses)
	prometheus.MustRegister(recycleRejections)
}
