package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts finished operations.
	// Labels:
	//   - op: "render" or "validate"
	//   - result: "ok" or the error kind
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "umlrender",
			Name:      "operations_total",
			Help:      "Total number of finished render and validate operations",
		},
		[]string{"op", "result"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "umlrender",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock time from dispatch to completion",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	ActiveOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "umlrender",
			Name:      "active_operations",
			Help:      "Render and validate operations currently executing",
		},
	)

	RejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "umlrender",
			Name:      "rejected_requests_total",
			Help:      "Requests rejected before reaching the engine",
		},
		[]string{"kind"},
	)

	RenderCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "umlrender",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of render cache hits",
		},
	)

	RenderCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "umlrender",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of render cache misses",
		},
	)
)
