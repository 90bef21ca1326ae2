// Package metrics exposes Prometheus collectors for the masking service.
//
// All methods are safe to call on a nil *Metrics, which records nothing, so
// components can be built without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry and the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	detection prometheus.Histogram
	entities  *prometheus.CounterVec
	images    *prometheus.CounterVec
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "piimask_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "piimask_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		detection: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "piimask_detection_duration_seconds",
				Help:    "Time spent in entity detection per text",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "piimask_entities_masked_total",
				Help: "Total number of entity spans rewritten by type and mode",
			},
			[]string{"entity_type", "mode"},
		),
		images: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "piimask_images_total",
				Help: "Total number of image redaction attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.detection,
		m.entities,
		m.images,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveDetection records the latency of one Analyze call.
func (m *Metrics) ObserveDetection(d time.Duration) {
	if m == nil {
		return
	}
	m.detection.Observe(d.Seconds())
}

// RecordEntity counts one rewritten span.
func (m *Metrics) RecordEntity(entityType, mode string) {
	if m == nil {
		return
	}
	m.entities.WithLabelValues(entityType, mode).Inc()
}

// RecordImage counts one image redaction attempt. outcome is "ok" or the
// failure kind.
func (m *Metrics) RecordImage(source, outcome string) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(source, outcome).Inc()
}
