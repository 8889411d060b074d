//go:build prometheus

package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics registered only when building with -tags prometheus; most
// embedders never need pool introspection, so it is kept out of the
// default build the same way shockwave gates its buffer pool metrics
// behind the "prometheus" build tag in buffer_pool_prometheus.go.
var (
	poolAllocated = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "embercore",
			Subsystem: "pool",
			Name:      "allocated_objects",
			Help:      "Number of objects the pool has ever constructed.",
		},
		[]string{"pool"},
	)

	poolFree = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "embercore",
			Subsystem: "pool",
			Name:      "free_objects",
			Help:      "Number of objects currently on the pool's free list.",
		},
		[]string{"pool"},
	)
)

// ReportMetrics pushes p's current Allocated/Len counts into the package's
// Prometheus gauges under the given pool name, for periodic calling from a
// metrics-scrape goroutine.
func ReportMetrics[T any](name string, p *Pool[T]) {
	poolAllocated.WithLabelValues(name).Set(float64(p.Allocated()))
	poolFree.WithLabelValues(name).Set(float64(p.Len()))
}
