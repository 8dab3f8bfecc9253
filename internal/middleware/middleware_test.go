package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	// Отдельный регистр для изоляции тестов
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger("/metrics").Handler())

	promMw, err := NewPrometheusMiddleware("test", registry, registry)
	require.NoError(t, err)
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r)

	r.GET("/chunks/:x", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"x": c.Param("x"), "trace": c.GetString(TraceIDKey)})
	})
	r.GET("/error", func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "host down"})
	})
	return r, registry
}

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	r, registry := newTestRouter(t)

	for _, path := range []string{"/chunks/1", "/chunks/2", "/error"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
	}

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var durationFound, errorsFound bool
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "test_http_request_duration_seconds":
			durationFound = true
			assert.Equal(t, "Длительность HTTP-запросов.", mf.GetHelp())
			// Шаблон маршрута склеивает /chunks/1 и /chunks/2 в одну серию
			assert.Len(t, mf.GetMetric(), 2)
		case "test_http_request_errors_total":
			errorsFound = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		case "test_http_requests_inflight":
			assert.Equal(t, float64(0), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}

	assert.True(t, durationFound, "Duration metric not found")
	assert.True(t, errorsFound, "Errors metric not found")
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/chunks/5", nil)
	r.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_request_duration_seconds"))
}

func TestPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware("dup", registry, registry)
	require.NoError(t, err)

	_, err = NewPrometheusMiddleware("dup", registry, registry)
	assert.Error(t, err)
}

func TestRequestLogger_TraceID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/chunks/7", nil)
	r.ServeHTTP(w, req)

	traceID := w.Header().Get("X-Trace-Id")
	require.NotEmpty(t, traceID)
	assert.Contains(t, w.Body.String(), traceID, "обработчик видит тот же trace-id")
}
