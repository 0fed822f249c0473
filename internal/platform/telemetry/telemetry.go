// Package telemetry exposes Prometheus metrics for the document service:
// HTTP request counts and latencies, document mutation counts, and the
// number of connected change-stream subscribers.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. Each Metrics value
// owns its registry so tests can create instances freely.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	documentEventsTotal *prometheus.CounterVec
	streamSubscribers   prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Duration of HTTP requests in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"method", "path"},
		),
		documentEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "document_events_total",
				Help:        "Total number of document collection mutations",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"action"},
		),
		streamSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "stream_subscribers",
				Help:        "Number of connected change-stream subscribers",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.documentEventsTotal,
		m.streamSubscribers,
	)

	return m
}

// RecordDocumentEvent counts a document mutation. action is "upload" or
// "delete".
func (m *Metrics) RecordDocumentEvent(action string) {
	m.documentEventsTotal.WithLabelValues(action).Inc()
}

// SetStreamSubscribers reports the current change-stream subscriber count.
func (m *Metrics) SetStreamSubscribers(n int) {
	m.streamSubscribers.Set(float64(n))
}

// Middleware records request count and latency per route. The route
// template (c.Path) is used rather than the raw URL so document IDs do
// not explode the label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				}
			}

			m.httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler returns the /metrics exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
