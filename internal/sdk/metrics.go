package sdk

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for execution status.
const (
	executionCompleted = "completed"
	executionFailed    = "failed"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qiime2_action_executions_total",
			Help: "Total number of action executions by kind and status.",
		},
		[]string{"kind", "status"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qiime2_action_execution_seconds",
			Help:    "Duration of action executions by kind, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionDuration)

	// Pre-initialize counter label combinations so they appear in scrapes
	// with value 0 from startup, rather than only after first observation.
	for _, kind := range []Kind{KindMethod, KindVisualizer, KindPipeline} {
		executionsTotal.WithLabelValues(string(kind), executionCompleted)
		executionsTotal.WithLabelValues(string(kind), executionFailed)
	}
}
