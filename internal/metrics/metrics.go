// Package metrics exposes Prometheus collectors for the monitor service.
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
	monitorPagesTotal          *prometheus.CounterVec
	monitorItemsTotal          *prometheus.CounterVec
	monitorKeywordMatchesTotal *prometheus.CounterVec
	monitorUploadsTotal        *prometheus.CounterVec
	monitorRunDurationSeconds  prometheus.Histogram
	monitorRunActive           prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		monitorPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_pages_total",
				Help: "Total number of list pages fetched, labeled by category and status.",
			},
			[]string{"category", "status"},
		)

		monitorItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_items_total",
				Help: "Total number of items handled, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		monitorKeywordMatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_keyword_matches_total",
				Help: "Total number of keyword matches, labeled by category.",
			},
			[]string{"category"},
		)

		monitorUploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_evidence_uploads_total",
				Help: "Total evidence archive uploads, labeled by status.",
			},
			[]string{"status"},
		)

		monitorRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monitor_run_duration_seconds",
				Help:    "Histogram of full crawl run durations.",
				Buckets: []float64{30, 60, 120, 300, 600, 1800, 3600},
			},
		)

		monitorRunActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_run_active",
				Help: "Whether a crawl run is currently in progress.",
			},
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

// ObservePage increments the page counter for a category fetch.
func ObservePage(category, status string) {
	monitorPagesTotal.WithLabelValues(category, status).Inc()
}

// ObserveItem increments the item counter for the given outcome.
// Outcomes: processed, skipped, failed.
func ObserveItem(outcome string) {
	monitorItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveKeywordMatch increments the keyword match counter.
func ObserveKeywordMatch(category string) {
	monitorKeywordMatchesTotal.WithLabelValues(category).Inc()
}

// ObserveUpload increments the evidence upload counter.
func ObserveUpload(status string) {
	monitorUploadsTotal.WithLabelValues(status).Inc()
}

// ObserveRunDuration records a completed run's wall time and marks the
// run inactive.
func ObserveRunDuration(d time.Duration) {
	monitorRunDurationSeconds.Observe(d.Seconds())
	monitorRunActive.Set(0)
}

// RunStarted marks a run as active.
func RunStarted() {
	monitorRunActive.Set(1)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
