// Package metrics exposes Prometheus metrics for the HTTP surface and the
// notification path.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so several instances can coexist in tests.
type Metrics struct {
	service  string
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	notificationFailures *prometheus.CounterVec
}

func New(service string) *Metrics {
	m := &Metrics{
		service:  service,
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
			[]string{"service", "method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration", Buckets: prometheus.DefBuckets},
			[]string{"service", "method", "route"},
		),
		notificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "notification_failures_total", Help: "Notifications that could not be delivered"},
			[]string{"service", "kind"},
		),
	}
	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(m.service, c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(m.service, c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordFailure counts an undelivered notification.
func (m *Metrics) RecordFailure(_ context.Context, kind string, _ error) {
	m.notificationFailures.WithLabelValues(m.service, kind).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
