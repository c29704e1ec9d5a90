// Package metrics exposes Prometheus metrics for the claim pipeline and its HTTP surface.
//
// All Record/Observe methods are safe to call on a nil *Pipeline, which lets
// components run without metrics in tests and tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "superclaims"

// Pipeline holds the collectors for one service instance.
type Pipeline struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractionsTotal     *prometheus.CounterVec
	classificationsTotal *prometheus.CounterVec
	degradedTotal        *prometheus.CounterVec
	claimsTotal          *prometheus.CounterVec
	claimDocuments       prometheus.Histogram
	modelCallsTotal      *prometheus.CounterVec
	modelCallDuration    *prometheus.HistogramVec
}

// New creates a Pipeline with its own registry.
func New(service string) *Pipeline {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "extractions_total",
			Help:      "Documents whose text was extracted, by source (structural, vision, none, cache).",
		},
		[]string{"service", "source"},
	)
	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "classifications_total",
			Help:      "Documents classified, by category and decision method.",
		},
		[]string{"service", "category", "method"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "degraded_total",
			Help:      "Pipeline stages that fell back to their default result.",
		},
		[]string{"service", "stage"},
	)
	claimsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "claims_total",
			Help:      "Processed claims by decision status.",
		},
		[]string{"service", "status"},
	)
	claimDocuments := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "claim_documents",
			Help:        "Structured documents produced per claim.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	modelCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Calls to the generative model service by outcome.",
		},
		[]string{"service", "provider", "operation", "outcome"},
	)
	modelCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Model call duration in seconds, retries included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service", "provider", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		extractionsTotal,
		classificationsTotal,
		degradedTotal,
		claimsTotal,
		claimDocuments,
		modelCallsTotal,
		modelCallDuration,
	)

	return &Pipeline{
		service:              service,
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		extractionsTotal:     extractionsTotal,
		classificationsTotal: classificationsTotal,
		degradedTotal:        degradedTotal,
		claimsTotal:          claimsTotal,
		claimDocuments:       claimDocuments,
		modelCallsTotal:      modelCallsTotal,
		modelCallDuration:    modelCallDuration,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts, latency and in-flight requests.
func (m *Pipeline) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordExtraction counts one text extraction by its source.
func (m *Pipeline) RecordExtraction(source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.extractionsTotal.WithLabelValues(m.service, source).Inc()
}

// RecordClassification counts one classification; method is "heuristic" or "model".
func (m *Pipeline) RecordClassification(category, method string) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(m.service, category, method).Inc()
}

// RecordDegraded counts a stage that returned its fallback value.
func (m *Pipeline) RecordDegraded(stage string) {
	if m == nil {
		return
	}
	m.degradedTotal.WithLabelValues(m.service, stage).Inc()
}

// RecordClaim counts a finished claim and the number of documents it produced.
func (m *Pipeline) RecordClaim(status string, documents int) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(m.service, status).Inc()
	m.claimDocuments.Observe(float64(documents))
}

// ObserveModelCall records the outcome and latency of one guarded model call.
func (m *Pipeline) ObserveModelCall(provider, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.modelCallsTotal.WithLabelValues(m.service, provider, operation, outcome).Inc()
	m.modelCallDuration.WithLabelValues(m.service, provider, operation).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
