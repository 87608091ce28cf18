// Package telemetry exposes Prometheus metrics for the pipeline.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsforge_fetch_pages_total",
			Help: "Total pages fetched, labeled by domain and outcome.",
		},
		[]string{"domain", "outcome"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsforge_rate_limit_delay_seconds",
			Help:    "Histogram of per-domain rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	queuePublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsforge_queue_publish_total",
			Help: "Total queue publishes, labeled by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)

	storeResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsforge_store_results_total",
			Help: "Total raw pages processed by the store, labeled by result.",
		},
		[]string{"result"},
	)

	indexUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsforge_index_upserts_total",
			Help: "Total index upserts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsforge_search_requests_total",
			Help: "Total search requests, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsforge_http_requests_total",
			Help: "Total HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsforge_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Store result labels.
const (
	StoreResultInserted  = "inserted"
	StoreResultUpdated   = "updated"
	StoreResultDuplicate = "duplicate"
	StoreResultDropped   = "dropped"
	StoreResultFailed    = "failed"
)

// ObserveFetch records the outcome of one page fetch.
func ObserveFetch(domain, outcome string) {
	fetchPagesTotal.WithLabelValues(domain, outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObservePublish records a queue publish attempt.
func ObservePublish(topic, outcome string) {
	queuePublishTotal.WithLabelValues(topic, outcome).Inc()
}

// ObserveStoreResult records the disposition of one raw page.
func ObserveStoreResult(result string) {
	storeResultsTotal.WithLabelValues(result).Inc()
}

// ObserveIndexUpsert records one indexer outcome.
func ObserveIndexUpsert(outcome string) {
	indexUpsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSearch records one search request outcome.
func ObserveSearch(outcome string) {
	searchRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
