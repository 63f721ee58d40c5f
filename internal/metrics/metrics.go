// Package metrics owns the Prometheus collectors of the practice service.
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

const namespace = "ielts"

// halfBandBuckets are upper bounds aligned to the band grid.
var halfBandBuckets = []float64{3.5, 4, 4.5, 5, 5.5, 6, 6.5, 7, 7.5, 8, 8.5, 9}

// Metrics groups collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	bandsAwarded     *prometheus.HistogramVec
	attemptsScored   *prometheus.CounterVec
	evaluatorCalls   *prometheus.CounterVec
	evaluatorLatency *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bandsAwarded: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "band_awarded",
			Help:      "Band scores awarded to submitted attempts.",
			Buckets:   halfBandBuckets,
		}, []string{"skill"}),
		attemptsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_scored_total",
			Help:      "Attempts scored, by skill and outcome.",
		}, []string{"skill", "outcome"}),
		evaluatorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "calls_total",
			Help:      "Calls to the external language model, by operation and outcome.",
		}, []string{"op", "outcome"}),
		evaluatorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "call_duration_seconds",
			Help:      "Latency of calls to the external language model.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		m.bandsAwarded, m.attemptsScored,
		m.evaluatorCalls, m.evaluatorLatency,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBand records a scored attempt. A nil receiver is a no-op so
// packages can take an optional *Metrics.
func (m *Metrics) ObserveBand(skill string, band float64) {
	if m == nil {
		return
	}
	m.bandsAwarded.WithLabelValues(skill).Observe(band)
	m.attemptsScored.WithLabelValues(skill, "ok").Inc()
}

// ScoringFailed counts an attempt that could not be scored.
func (m *Metrics) ScoringFailed(skill string) {
	if m == nil {
		return
	}
	m.attemptsScored.WithLabelValues(skill, "error").Inc()
}

// ObserveEvaluator records one external model call.
func (m *Metrics) ObserveEvaluator(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.evaluatorCalls.WithLabelValues(op, outcome).Inc()
	m.evaluatorLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Middleware records request counts and latency keyed by the chi route
// pattern, which keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
