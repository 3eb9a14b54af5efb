// Package metrics exposes Prometheus collectors for the enhancement
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all pipeline collectors. Construct once and pass by
// reference; collectors register on the default registry via promauto.
type Metrics struct {
	OperationsTotal     *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	CandidatesGenerated prometheus.Counter
	CandidatesDropped   prometheus.Counter
	ResourcesPublished  prometheus.Counter
	ResourcesExpired    prometheus.Counter
	NotifyFailures      prometheus.Counter
}

// New creates and registers the pipeline metrics under the namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Operation invocations by name and outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Operation duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 600},
			},
			[]string{"operation"},
		),
		CandidatesGenerated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_generated_total",
				Help:      "Candidates produced by sampling generators",
			},
		),
		CandidatesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_dropped_total",
				Help:      "Candidates dropped by validation or scoring failures",
			},
		),
		ResourcesPublished: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_published_total",
				Help:      "Payloads externalized to the resource store",
			},
		),
		ResourcesExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_expired_total",
				Help:      "Resources evicted by lazy TTL expiry on read",
			},
		),
		NotifyFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_failures_total",
				Help:      "Progress notification deliveries that failed",
			},
		),
	}
}
