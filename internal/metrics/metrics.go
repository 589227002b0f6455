// Package metrics exposes Prometheus metrics for the AutoRig service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Detection outcomes
const (
	OutcomeLive     = "live"
	OutcomeFallback = "fallback"
	OutcomePartial  = "partial"
)

// Manager owns every metric and the registry they live in
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	layerBuckets     []float64
	registry         *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	detections          *prometheus.CounterVec
	layersEmitted       prometheus.Histogram
	rigTypes            *prometheus.CounterVec
}

// Option configures a Manager
type Option func(*Manager)

func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		m.subsystem = subsystem
	}
}

// WithHistogramBuckets sets the request-duration buckets, in seconds
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers metrics on r instead of a fresh registry
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates and registers all metrics
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "autorig",
		histogramBuckets: prometheus.DefBuckets,
		layerBuckets:     []float64{1, 3, 5, 8, 12, 16, 20, 25},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.detections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detections_total",
		Help:      "Detection outcomes: live, fallback or partial",
	}, []string{"outcome", "reason"})

	m.layersEmitted = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "layers_emitted",
		Help:      "Layers produced per processed image",
		Buckets:   m.layerBuckets,
	})

	m.rigTypes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rigs_total",
		Help:      "Generated rigs by rig type",
	}, []string{"rig_type"})

	return m
}

// ObserveRequest records one finished HTTP request
func (m *Manager) ObserveRequest(route, method string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordDetection counts a detection outcome. reason is empty for live results.
func (m *Manager) RecordDetection(outcome, reason string) {
	m.detections.WithLabelValues(outcome, reason).Inc()
}

// RecordResult records the layer count and rig type of a processed image
func (m *Manager) RecordResult(layers int, rigType string) {
	m.layersEmitted.Observe(float64(layers))
	m.rigTypes.WithLabelValues(rigType).Inc()
}

// Registry returns the registry backing the manager
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
