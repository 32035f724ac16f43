package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
)

// Outcome labels for adpulse_analyses_total.
const (
	outcomeOK        = "ok"
	outcomeMalformed = "malformed"
	outcomeTooLarge  = "too_large"
	outcomeError     = "error"
)

// Metrics groups the collectors the API updates.
type Metrics struct {
	Analyses *prometheus.CounterVec
	Insights *prometheus.CounterVec
	Rows     prometheus.Histogram
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adpulse_analyses_total",
			Help: "Analysis requests by outcome.",
		}, []string{"outcome"}),
		Insights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adpulse_insights_total",
			Help: "Insights emitted by topic and severity.",
		}, []string{"topic", "severity"}),
		Rows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adpulse_analysis_rows",
			Help:    "Rows per analyzed dataset.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	reg.MustRegister(m.Analyses, m.Insights, m.Rows)
	return m
}

func (m *Metrics) observe(rows int, res *analysis.Result) {
	m.Analyses.WithLabelValues(outcomeOK).Inc()
	m.Rows.Observe(float64(rows))
	for _, in := range res.Insights {
		m.Insights.WithLabelValues(string(in.Topic), string(in.Severity)).Inc()
	}
}
