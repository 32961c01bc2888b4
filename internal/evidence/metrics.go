package evidence

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus counters for evidence resolution.
type Metrics struct {
	ObservationsTotal *prometheus.CounterVec
	SkippedTotal      *prometheus.CounterVec
}

// NewMetrics returns the process-wide resolver metrics, registering them
// on first use.
//
//   - esgmetrics_observations_total{source}
//   - esgmetrics_skipped_items_total{kind}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ObservationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "esgmetrics_observations_total",
					Help: "Total number of observations produced from evidence",
				},
				[]string{"source"}, // "manual", "text", "csv"
			),
			SkippedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "esgmetrics_skipped_items_total",
					Help: "Total number of evidence items skipped",
				},
				[]string{"kind"}, // "decode", "unsupported", "invalid_value"
			),
		}
	})
	return globalMetrics
}
