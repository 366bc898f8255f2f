// Package metrics exposes the Prometheus instruments served on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Module provides the application metrics.
var Module = fx.Module("metrics", fx.Provide(New))

// Metrics holds the application-level instruments.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	jobEvents    *prometheus.CounterVec
	wsClients    prometheus.Gauge
}

// New registers the instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicehub_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoicehub_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		jobEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicehub_job_events_total",
			Help: "Generation job lifecycle events by status.",
		}, []string{"status"}),
		wsClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "invoicehub_websocket_clients",
			Help: "Currently connected WebSocket clients.",
		}),
	}
}

// ObserveJob counts a job lifecycle transition.
func (m *Metrics) ObserveJob(status string) {
	m.jobEvents.WithLabelValues(status).Inc()
}

// SetWSClients records the connected client count.
func (m *Metrics) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
