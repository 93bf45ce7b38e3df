// Package metrics exposes Prometheus collectors for the extraction service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchDurationSeconds       *prometheus.HistogramVec
	extractionsTotal           *prometheus.CounterVec
	fieldsExtractedTotal       *prometheus.CounterVec
	discoveryRoundsTotal       prometheus.Counter
	discoveredURLsTotal        prometheus.Counter
	runsTotal                  *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedlens_fetch_duration_seconds",
				Help:    "Histogram of per-URL fetch latencies, labeled by lane and outcome.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
			},
			[]string{"lane", "outcome"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlens_extractions_total",
				Help: "Total number of per-URL extractions, labeled by lane and outcome.",
			},
			[]string{"lane", "outcome"},
		)

		fieldsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlens_fields_extracted_total",
				Help: "Total number of validated engagement fields, labeled by field.",
			},
			[]string{"field"},
		)

		discoveryRoundsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feedlens_discovery_rounds_total",
				Help: "Total number of scroll rounds executed during discovery.",
			},
		)

		discoveredURLsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feedlens_discovered_urls_total",
				Help: "Total number of unique post URLs discovered.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedlens_runs_total",
				Help: "Total number of pipeline runs, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the status-server HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDiscoveryRound counts one scroll round and the new URLs it produced.
func ObserveDiscoveryRound(newURLs int) {
	discoveryRoundsTotal.Inc()
	if newURLs > 0 {
		discoveredURLsTotal.Add(float64(newURLs))
	}
}

// ObserveRun counts a completed pipeline run.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveFields counts each validated engagement field once.
func ObserveFields(fields map[string]bool) {
	for name, ok := range fields {
		if ok {
			fieldsExtractedTotal.WithLabelValues(name).Inc()
		}
	}
}

// Recorder implements the scheduler's and discovery engine's metrics
// hooks over the package collectors.
type Recorder struct{}

// NewRecorder returns a Recorder. Init must have been called first.
func NewRecorder() *Recorder {
	Init()
	return &Recorder{}
}

// ObserveFetch records one backend fetch.
func (Recorder) ObserveFetch(lane string, d time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	fetchDurationSeconds.WithLabelValues(lane, outcome).Observe(d.Seconds())
}

// IncExtraction counts one per-URL extraction outcome.
func (Recorder) IncExtraction(lane string, outcome string) {
	extractionsTotal.WithLabelValues(lane, outcome).Inc()
}

// ObserveFields counts the validated fields of one extraction.
func (Recorder) ObserveFields(fields map[string]bool) {
	ObserveFields(fields)
}

// ObserveDiscoveryRound counts one scroll round and its new URLs.
func (Recorder) ObserveDiscoveryRound(newURLs int) {
	ObserveDiscoveryRound(newURLs)
}
