package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewMetrics()
	router := gin.New()
	router.Use(metrics.Middleware())
	router.GET("/pain-logs/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", metrics.Handler())

	for _, path := range []string{"/pain-logs/a", "/pain-logs/b", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "/pain-logs/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "unmatched", "404")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paintrack_http_requests_total")
	assert.Contains(t, rec.Body.String(), "paintrack_http_request_duration_seconds")
}

func TestMetricsCountersAndNilReceiver(t *testing.T) {
	metrics := NewMetrics()
	metrics.observePainLogCreated()
	metrics.observePainLogCreated()
	metrics.observeAICall("ok")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.painLogsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.aiCallsTotal.WithLabelValues("ok")))

	var missing *Metrics
	assert.NotPanics(t, func() {
		missing.observePainLogCreated()
		missing.observeAICall("error")
	})
}

func TestSeparateMetricsDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		first := NewMetrics()
		second := NewMetrics()
		first.observePainLogCreated()
		assert.Equal(t, 0.0, testutil.ToFloat64(second.painLogsCreated))
	})
}
