// Package metrics defines the Prometheus collectors for the estimation service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "fibre_cost"

	// Labels
	phaseLabel   = "phase"
	outcomeLabel = "outcome"
	kindLabel    = "kind"
	statusLabel  = "status"
)

var runsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "estimation_runs_total",
		Help:      "Estimation runs partitioned by final validation status.",
	},
	[]string{statusLabel},
)

var runDurationMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "estimation_run_duration_seconds",
		Help:      "Wall time of a full estimation run including retries.",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	},
)

var attemptsMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "estimation_attempts",
		Help:      "Pipeline attempts per run.",
		Buckets:   []float64{1, 2, 3, 4},
	},
)

var phaseTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_phase_total",
		Help:      "Pipeline phase executions partitioned by outcome (ok, fallback, error).",
	},
	[]string{phaseLabel, outcomeLabel},
)

var oracleCallsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_calls_total",
		Help:      "Advisory oracle calls partitioned by prompt kind and outcome.",
	},
	[]string{kindLabel, outcomeLabel},
)

var oracleLatencyMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "oracle_call_duration_seconds",
		Help:      "Advisory oracle round-trip latency.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{kindLabel},
)

var anomaliesMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anomalies_total",
		Help:      "Runs whose final cost exceeded the anomaly threshold.",
	},
)

var httpRequestsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests partitioned by status code, method and HTTP path.",
	},
	[]string{"code", "method", "path"},
)

var httpLatencyMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "Time spent on the request partitioned by status code, method and HTTP path.",
		Buckets:   []float64{50, 300, 1000, 5000, 30000},
	},
	[]string{"code", "method", "path"},
)

// ObserveRun records a completed estimation run
func ObserveRun(status string, attempts int, elapsed time.Duration) {
	runsTotalMetric.With(prometheus.Labels{statusLabel: status}).Inc()
	attemptsMetric.Observe(float64(attempts))
	runDurationMetric.Observe(elapsed.Seconds())
}

// IncPhase counts a phase execution
func IncPhase(phase, outcome string) {
	phaseTotalMetric.With(prometheus.Labels{phaseLabel: phase, outcomeLabel: outcome}).Inc()
}

// ObserveOracleCall records one oracle round trip
func ObserveOracleCall(kind, outcome string, elapsed time.Duration) {
	oracleCallsMetric.With(prometheus.Labels{kindLabel: kind, outcomeLabel: outcome}).Inc()
	oracleLatencyMetric.With(prometheus.Labels{kindLabel: kind}).Observe(elapsed.Seconds())
}

// IncAnomaly counts an anomaly-flagged run
func IncAnomaly() {
	anomaliesMetric.Inc()
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency by route pattern
func Middleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			rp := rctx.RoutePattern()
			code := strconv.Itoa(ww.Status())
			httpRequestsMetric.WithLabelValues(code, r.Method, rp).Inc()
			httpLatencyMetric.WithLabelValues(code, r.Method, rp).Observe(float64(time.Since(start).Milliseconds()))
		}
	}
	return http.HandlerFunc(fn)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(
		runsTotalMetric,
		runDurationMetric,
		attemptsMetric,
		phaseTotalMetric,
		oracleCallsMetric,
		oracleLatencyMetric,
		anomaliesMetric,
		httpRequestsMetric,
		httpLatencyMetric,
	)
}
