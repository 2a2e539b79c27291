// Package metrics exposes Prometheus instrumentation for the insights server.
//
// Standard Go runtime and process metrics come for free from
// prometheus/client_golang; the insights-specific series registered here are:
//
//	insights_http_requests_total          — counter: requests by method/path/status
//	insights_http_request_duration_secs   — histogram: HTTP latency by method/path
//	insights_uploads_total                — counter: CSV uploads by kind/result
//	insights_rows_imported_total          — counter: parsed rows by kind
//	insights_analyses_total               — counter: analyzer runs by analyzer/cache outcome
//	insights_analysis_duration_seconds    — histogram: analyzer compute latency
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPRequests counts HTTP requests by method, templated path, and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "insights_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "path", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "insights_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "path"})

// Uploads counts CSV upload attempts by kind (campaigns, flows, subscribers)
// and result (ok, rejected, error).
var Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "insights_uploads_total",
	Help: "CSV uploads by kind and result.",
}, []string{"kind", "result"})

// RowsImported counts successfully parsed rows by kind.
var RowsImported = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "insights_rows_imported_total",
	Help: "Rows imported from CSV uploads.",
}, []string{"kind"})

// Analyses counts analyzer runs by analyzer and cache outcome (hit, miss, off).
var Analyses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "insights_analyses_total",
	Help: "Analyzer executions by analyzer and cache outcome.",
}, []string{"analyzer", "cache"})

// AnalysisDuration tracks analyzer compute time, cache hits excluded.
var AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "insights_analysis_duration_seconds",
	Help:    "Analyzer compute latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"analyzer"})

// Handler returns the Prometheus scrape handler. Mount at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency for every handled request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := sanitizePath(r.URL.Path)
		status := strconv.Itoa(rw.status)
		HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// sanitizePath templates out dataset and flow identifiers so label
// cardinality stays bounded: /api/datasets/abc/flows/xyz → /api/datasets/:id/flows/:id.
func sanitizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "datasets", "flows":
			if parts[i] != "" {
				parts[i] = ":id"
			}
		}
	}
	p := strings.Join(parts, "/")
	if len(p) > 64 {
		p = p[:64]
	}
	return p
}
