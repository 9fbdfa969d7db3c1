package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several routers can live in one process.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	painLogsCreated prometheus.Counter
	aiCallsTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paintrack",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Handled HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "paintrack",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		painLogsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "paintrack",
				Name:      "pain_logs_created_total",
				Help:      "Pain log entries stored.",
			},
		),
		aiCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paintrack",
				Subsystem: "ai",
				Name:      "calls_total",
				Help:      "AI provider calls by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) observePainLogCreated() {
	if m == nil {
		return
	}
	m.painLogsCreated.Inc()
}

func (m *Metrics) observeAICall(outcome string) {
	if m == nil {
		return
	}
	m.aiCallsTotal.WithLabelValues(outcome).Inc()
}
