package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// Metrics holds the prometheus collectors for recommendation runs.
type Metrics struct {
	skus       *prometheus.CounterVec
	exclusions *prometheus.CounterVec
	duration   prometheus.Histogram
	runs       *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg gives unregistered
// collectors, which is what tests and one-off CLI runs want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		skus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reorder_skus_total",
				Help: "SKUs processed by recommendation runs, by outcome status",
			},
			[]string{"status"},
		),
		exclusions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reorder_sku_exclusions_total",
				Help: "SKUs excluded from recommendation, by reason",
			},
			[]string{"reason"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reorder_sku_duration_seconds",
				Help:    "Time spent forecasting, backtesting and sweeping one SKU",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reorder_runs_total",
				Help: "Recommendation runs, by final status",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) observe(o SKUOutcome) {
	if m == nil {
		return
	}
	m.skus.WithLabelValues(o.Status.String()).Inc()
	if o.Status == domain.OutcomeExcluded {
		m.exclusions.WithLabelValues(string(o.Reason)).Inc()
	}
	m.duration.Observe(o.Duration.Seconds())
}

func (m *Metrics) observeRun(status PipelineStatus) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}
