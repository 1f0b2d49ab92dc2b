package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling
// engine. All methods are nil-safe so services can run uninstrumented.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	sessionsSkipped prometheus.Counter
	generationRuns  *prometheus.CounterVec
	makeupOutcomes  *prometheus.CounterVec
	extensionReview *prometheus.CounterVec
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sessionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_generated_total",
		Help: "Sessions created by the generator",
	})

	sessionsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_generation_skipped_total",
		Help: "Generation dates skipped because a live session already existed",
	})

	generationRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_runs_total",
		Help: "Per-enrollment generation runs by outcome",
	}, []string{"outcome"})

	makeupOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "makeup_proposals_resolved_total",
		Help: "Makeup proposal resolutions by outcome",
	}, []string{"outcome"})

	extensionReview := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "extension_reviews_total",
		Help: "Extension request reviews by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionsCreated, sessionsSkipped, generationRuns, makeupOutcomes, extensionReview, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sessionsCreated: sessionsCreated,
		sessionsSkipped: sessionsSkipped,
		generationRuns:  generationRuns,
		makeupOutcomes:  makeupOutcomes,
		extensionReview: extensionReview,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGeneration records the outcome of one generation run.
func (m *MetricsService) ObserveGeneration(created, skipped int) {
	if m == nil {
		return
	}
	m.sessionsCreated.Add(float64(created))
	m.sessionsSkipped.Add(float64(skipped))
	outcome := "noop"
	if created > 0 {
		outcome = "generated"
	}
	m.generationRuns.WithLabelValues(outcome).Inc()
}

// ObserveGenerationFailure records an aborted generation run.
func (m *MetricsService) ObserveGenerationFailure() {
	if m == nil {
		return
	}
	m.generationRuns.WithLabelValues("failed").Inc()
}

// ObserveMakeupResolution records a proposal resolution outcome.
func (m *MetricsService) ObserveMakeupResolution(outcome string) {
	if m == nil {
		return
	}
	m.makeupOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveExtensionReview records an extension review outcome.
func (m *MetricsService) ObserveExtensionReview(outcome string) {
	if m == nil {
		return
	}
	m.extensionReview.WithLabelValues(outcome).Inc()
}
