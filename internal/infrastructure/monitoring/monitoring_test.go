package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, func() int { return 3 })

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/vnc/address", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/vnc/address", "/vnc/address", "/nope"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/vnc/address", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingLogins))

	s := m.Snapshot()
	assert.EqualValues(t, 3, s.TotalRequests)
	assert.EqualValues(t, 1, s.TotalErrors)
	assert.GreaterOrEqual(t, s.AvgDuration, 0.0)
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)

	NewTimer(m, "exchange").Stop(nil)
	NewTimer(m, "exchange").Stop(errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityCalls.WithLabelValues("exchange", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityCalls.WithLabelValues("exchange", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingLogins))
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)
	m.RecordBootstrap("vnc", "ready")
	m.RecordLoginStarted("vnc")
	m.RecordReset("logout")
	m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond, 10)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, name := range []string{
		`gate_bootstraps_total{outcome="ready",profile="vnc"} 1`,
		`gate_logins_started_total{profile="vnc"} 1`,
		`gate_cookie_resets_total{reason="logout"} 1`,
		"gate_uptime_seconds",
		"gate_http_request_duration_seconds_bucket",
	} {
		assert.True(t, strings.Contains(body, name), name)
	}
}
