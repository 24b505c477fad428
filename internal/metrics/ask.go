package metrics

import "github.com/prometheus/client_golang/prometheus"

// Request orchestration metrics.
var (
	AskRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lawrag",
			Name:      "ask_requests_total",
			Help:      "Total number of retrieval requests by outcome",
		},
		[]string{"mode", "kind", "status"},
	)

	AskStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lawrag",
			Name:      "ask_stage_duration_seconds",
			Help:      "Duration of each retrieval pipeline stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	CreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lawrag",
			Name:      "credits_total",
			Help:      "Credits charged and refunded",
		},
		[]string{"op"}, // "charge" / "refund"
	)
)

var askMetricsRegistered bool

// RegisterAskMetrics registers orchestration metrics. Must be called once from main.
func RegisterAskMetrics() {
	if askMetricsRegistered {
		return
	}
	prometheus.MustRegister(AskRequestsTotal)
	prometheus.MustRegister(AskStageDuration)
	prometheus.MustRegister(CreditsTotal)
	askMetricsRegistered = true
}
