// Package metrics defines the Prometheus metric collectors used by the
// dispersion services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	WordsAnalyzedTotal   prometheus.Counter
	InvalidWordsTotal    prometheus.Counter
	UndefinedTotal       *prometheus.CounterVec
	BatchDuration        prometheus.Histogram
	BatchSize            prometheus.Histogram
	CorpusParts          prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	ReportsSavedTotal    *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them on reg. Pass
// prometheus.DefaultRegisterer in services and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		WordsAnalyzedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dispersion_words_analyzed_total",
				Help: "Total word distributions analysed.",
			},
		),
		InvalidWordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dispersion_invalid_words_total",
				Help: "Word distributions rejected at construction.",
			},
		),
		UndefinedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispersion_undefined_total",
				Help: "Requested indices that were undefined for a word, by index.",
			},
			[]string{"index"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispersion_batch_duration_seconds",
				Help:    "Wall time of one batch run in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispersion_batch_size",
				Help:    "Number of words per batch run.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 9),
			},
		),
		CorpusParts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispersion_corpus_parts",
				Help:    "Number of corpus parts per batch run.",
				Buckets: prometheus.ExponentialBuckets(2, 4, 9),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		ReportsSavedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispersion_reports_saved_total",
				Help: "Report persistence attempts by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.WordsAnalyzedTotal,
		m.InvalidWordsTotal,
		m.UndefinedTotal,
		m.BatchDuration,
		m.BatchSize,
		m.CorpusParts,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ReportsSavedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
