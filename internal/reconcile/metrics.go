package reconcile

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus counters for reconciliation.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec
	RecordsTotal *prometheus.CounterVec
}

// Run results.
const (
	resultNoop    = "noop"
	resultSuccess = "success"
	resultPartial = "partial"
	resultFailure = "failure"
)

// NewMetrics returns the process-wide reconciliation metrics.
//
//   - esgmetrics_sync_runs_total{result}
//   - esgmetrics_sync_records_total{kind}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "esgmetrics_sync_runs_total",
					Help: "Total number of reconciliation runs",
				},
				[]string{"result"}, // "noop", "success", "partial", "failure"
			),
			RecordsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "esgmetrics_sync_records_total",
					Help: "Total number of task records reported by the remote",
				},
				[]string{"kind"}, // "created", "updated", "error"
			),
		}
	})
	return globalMetrics
}
