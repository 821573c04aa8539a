// Package metrics holds the Prometheus collectors of the explorer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kgv"

// Result label values for Operations.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultCancelled = "cancelled"
	ResultInvalid   = "invalid"
	ResultStale     = "stale"
)

// Collector holds every metric of one explorer process. A nil *Collector
// is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Session operations
	Operations *prometheus.CounterVec
	OpDuration *prometheus.HistogramVec
	InFlight   prometheus.Gauge

	// Scene
	Frames      prometheus.Counter
	SceneNodes  prometheus.Gauge
	SceneLinks  prometheus.Gauge
	ThemeChange *prometheus.CounterVec

	// HTTP surface
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Viewers      prometheus.Gauge
	Streams      prometheus.Gauge

	// Export
	Exports *prometheus.CounterVec
}

// New creates a collector with its own registry, so several can coexist in
// one test binary.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Session operations by name and result",
			},
			[]string{"op", "result"},
		),
		OpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Session operation duration in seconds, including the backend call",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Operations currently holding the loading indicator",
		}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Scene frames presented",
		}),
		SceneNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scene_nodes",
			Help:      "Nodes in the current scene",
		}),
		SceneLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scene_links",
			Help:      "Links in the current scene",
		}),
		ThemeChange: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "theme_changes_total",
				Help:      "Theme changes by resulting mode and how they were applied",
			},
			[]string{"mode", "apply"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers",
			Help:      "Viewers with an open event stream",
		}),
		Streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_streams",
			Help:      "Open server-sent event streams",
		}),
		Exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Snapshot exports by destination and result",
			},
			[]string{"destination", "result"},
		),
	}

	registry.MustRegister(
		c.Operations,
		c.OpDuration,
		c.InFlight,
		c.Frames,
		c.SceneNodes,
		c.SceneLinks,
		c.ThemeChange,
		c.HTTPRequests,
		c.HTTPDuration,
		c.Viewers,
		c.Streams,
		c.Exports,
	)
	return c
}

// Registry returns the registry the collectors are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Begin marks an operation in flight. The returned func records its result
// and duration.
func (c *Collector) Begin(op string) func(result string) {
	if c == nil {
		return func(string) {}
	}
	start := time.Now()
	c.InFlight.Inc()
	return func(result string) {
		c.InFlight.Dec()
		c.Operations.WithLabelValues(op, result).Inc()
		c.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// Frame counts one presented frame.
func (c *Collector) Frame() {
	if c == nil {
		return
	}
	c.Frames.Inc()
}

// SceneSize records the size of the current scene.
func (c *Collector) SceneSize(nodes, links int) {
	if c == nil {
		return
	}
	c.SceneNodes.Set(float64(nodes))
	c.SceneLinks.Set(float64(links))
}

// Theme counts one theme change.
func (c *Collector) Theme(mode, apply string) {
	if c == nil {
		return
	}
	c.ThemeChange.WithLabelValues(mode, apply).Inc()
}

// HTTP records one served request.
func (c *Collector) HTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Export counts one snapshot export attempt.
func (c *Collector) Export(destination string, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.Exports.WithLabelValues(destination, result).Inc()
}
