// Package monitoring exposes Prometheus metrics for the scraper and
// summarizes recorded runs.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bbb_scraper"

// Business stages counted by Metrics.Businesses.
const (
	StageCollected = "collected"
	StageUnique    = "unique"
	StageEnriched  = "enriched"
)

// Metrics holds the scraper's collectors. A nil *Metrics is valid and
// records nothing, so components can be built without a registry.
type Metrics struct {
	fetchAttempts *prometheus.CounterVec
	fetchOutcomes *prometheus.CounterVec
	extractions   *prometheus.CounterVec
	pages         *prometheus.CounterVec
	businesses    *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Transport calls issued, including retries.",
		}, []string{"kind"}),
		fetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_outcomes_total",
			Help:      "Final fetch outcomes after retries.",
		}, []string{"kind", "outcome"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Embedded payload extraction results.",
		}, []string{"source", "status"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_pages_total",
			Help:      "Search pages processed, by result.",
		}, []string{"result"}),
		businesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "businesses_total",
			Help:      "Business records per pipeline stage.",
		}, []string{"stage"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of complete scrape runs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.fetchAttempts, m.fetchOutcomes, m.extractions,
			m.pages, m.businesses, m.runDuration)
	}
	return m
}

// FetchAttempt counts one transport call for the given fetch kind
// ("search" or "detail").
func (m *Metrics) FetchAttempt(kind string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(kind).Inc()
}

// FetchOutcome counts the classified result of a fetch.
func (m *Metrics) FetchOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.fetchOutcomes.WithLabelValues(kind, outcome).Inc()
}

// Extraction counts a payload extraction result. source is "embedded" or "dom".
func (m *Metrics) Extraction(source, status string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(source, status).Inc()
}

// Page counts a processed search page.
func (m *Metrics) Page(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "empty"
	}
	m.pages.WithLabelValues(result).Inc()
}

// Businesses adds n records to the given stage.
func (m *Metrics) Businesses(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.businesses.WithLabelValues(stage).Add(float64(n))
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(d time.Duration, status string) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}
