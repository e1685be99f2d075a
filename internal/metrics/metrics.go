package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes used as the "outcome" label.
const (
	OutcomeOK         = "ok"
	OutcomeEmptyQuery = "empty_query"
	OutcomeError      = "error"
)

// Metrics groups the search engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	CorpusRecords prometheus.Gauge
	BuildDuration prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incident_search_queries_total",
				Help: "Total number of similarity queries by outcome",
			},
			[]string{"outcome"},
		),
		QueryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "incident_search_query_duration_seconds",
				Help:    "Similarity query latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
		),
		CorpusRecords: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "incident_search_corpus_records",
				Help: "Number of incident records in the built index",
			},
		),
		BuildDuration: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "incident_search_build_duration_seconds",
				Help: "Duration of the last corpus embedding and index build",
			},
		),
	}
}

// ObserveQuery counts one query by outcome and records its latency when it
// succeeded. It is a no-op on a nil receiver.
func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.QueryDuration.Observe(d.Seconds())
	}
}

// ObserveBuild records the indexed corpus size and build time. It is a no-op
// on a nil receiver.
func (m *Metrics) ObserveBuild(records int, d time.Duration) {
	if m == nil {
		return
	}
	m.CorpusRecords.Set(float64(records))
	m.BuildDuration.Set(d.Seconds())
}
