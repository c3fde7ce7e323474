// Package telemetry holds the Prometheus collectors and tracing setup shared by the service.
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

// --- CUSTOM METRIC DEFINITIONS ---

var (
	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontsnatcher_extractions_total",
			Help: "Total number of site extractions, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	extractionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fontsnatcher_extraction_duration_seconds",
			Help:    "Histogram of end-to-end extraction latencies.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 12},
		},
	)

	fontsDiscovered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fontsnatcher_fonts_discovered",
			Help:    "Unique fonts returned per extraction.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	stylesheetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontsnatcher_stylesheets_total",
			Help: "Stylesheets considered by the crawler, labeled by result.",
		},
		[]string{"result"},
	)

	fetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontsnatcher_fetch_bytes_total",
			Help: "Bytes read from upstream sites, labeled by kind.",
		},
		[]string{"kind"},
	)

	proxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontsnatcher_proxy_requests_total",
			Help: "Font proxy requests, labeled by response code.",
		},
		[]string{"code"},
	)

	dnsLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontsnatcher_dns_cache_lookups_total",
			Help: "Guard DNS cache lookups, labeled by hit or miss.",
		},
		[]string{"result"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fontsnatcher_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 12},
		},
		[]string{"method", "route"},
	)
)

// --- HTTP HANDLER & MIDDLEWARE ---

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

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
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

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// --- HELPER FUNCTIONS ---

// ObserveExtraction records the outcome of one site extraction.
func ObserveExtraction(outcome string, uniqueFonts int, duration time.Duration) {
	extractionsTotal.WithLabelValues(outcome).Inc()
	extractionDurationSeconds.Observe(duration.Seconds())
	if outcome == "success" {
		fontsDiscovered.Observe(float64(uniqueFonts))
	}
}

// ObserveStylesheet records what happened to one queued stylesheet
// (fetched, truncated, skipped, unsafe, failed).
func ObserveStylesheet(result string) {
	stylesheetsTotal.WithLabelValues(result).Inc()
}

// ObserveFetchBytes adds n bytes read for kind (html, css, font).
func ObserveFetchBytes(kind string, n int) {
	if n > 0 {
		fetchBytesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveProxyRequest records a font proxy response code.
func ObserveProxyRequest(code int) {
	proxyRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveDNSLookup records a guard DNS cache hit or miss.
func ObserveDNSLookup(result string) {
	dnsLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimited records a rejected API request.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
