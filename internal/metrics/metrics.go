// Package metrics exposes Prometheus collectors for the admissions crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal          *prometheus.CounterVec
	pageBytesTotal             *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fieldExtractionsTotal      *prometheus.CounterVec
	enrichmentsTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	jobsTotal                  *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	runDurationSeconds         prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admissions_pages_fetched_total",
				Help: "Total number of pages fetched, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		pageBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admissions_page_bytes_total",
				Help: "Total number of page bytes fetched, labeled by host.",
			},
			[]string{"host"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admissions_fetch_duration_seconds",
				Help:    "Histogram of single page fetch durations, labeled by host.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"host"},
		)

		fieldExtractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admissions_field_extractions_total",
				Help: "Total number of extracted fields, labeled by field and source strategy.",
			},
			[]string{"field", "source"},
		)

		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admissions_enrichments_total",
				Help: "Total number of enrichment attempts, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
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

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admissions_jobs_total",
				Help: "Total number of crawl jobs processed, labeled by final status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "admissions_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admissions_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by host.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "admissions_run_duration_seconds",
				Help:    "Histogram of end to end crawl run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)
	})
}

// SanitizeHost sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the page fetch metrics.
func ObserveFetch(site, outcome string, bytesFetched int, duration time.Duration) {
	host := SanitizeHost(site)
	pagesFetchedTotal.WithLabelValues(host, outcome).Inc()
	if bytesFetched > 0 {
		pageBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveExtraction records which strategy produced a field.
func ObserveExtraction(field, source string) {
	fieldExtractionsTotal.WithLabelValues(field, source).Inc()
}

// ObserveEnrichment records the outcome of one enrichment attempt.
func ObserveEnrichment(provider, outcome string) {
	enrichmentsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRunDuration records the wall clock duration of a whole crawl run.
func ObserveRunDuration(duration time.Duration) {
	runDurationSeconds.Observe(duration.Seconds())
}
