package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes for MessagesTotal.
const (
	OutcomeDelivered     = "delivered"
	OutcomeUndeliverable = "undeliverable"
	OutcomeDropped       = "dropped"
	OutcomeStale         = "stale"
)

// Hint protocol Prometheus metrics.
var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hintd",
			Name:      "messages_total",
			Help:      "Protocol messages by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hintd",
			Name:      "sessions_active",
			Help:      "Number of open hint sessions",
		},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hintd",
			Name:      "operation_duration_seconds",
			Help:      "Session operation duration until the context tree is quiescent",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"operation"},
	)

	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hintd",
			Name:      "reports_total",
			Help:      "Reports emitted to the report sink by type",
		},
		[]string{"type"},
	)
)

var registerProtocolOnce sync.Once

// RegisterProtocolMetrics registers the hint protocol metrics. Called once from main.
func RegisterProtocolMetrics() {
	registerProtocolOnce.Do(func() {
		prometheus.MustRegister(MessagesTotal)
		prometheus.MustRegister(SessionsActive)
		prometheus.MustRegister(OperationDuration)
		prometheus.MustRegister(ReportsTotal)
	})
}
