package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordBooking("scheduled")
	m.RecordBooking("scheduled")
	m.RecordBooking("waitlist")
	m.RecordNoShow("sweep")
	m.SetQueueWaiting("sched-1", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("scheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("waitlist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.noShowsTotal.WithLabelValues("sweep")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueWaiting.WithLabelValues("sched-1")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBooking("scheduled")
		m.RecordCheckin("online")
		m.RecordCall()
		m.RecordNoShow("doctor")
		m.SetQueueWaiting("s", 1)
		m.ForgetQueue("s")
	})
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{endpoint="/ping",method="GET",status_code="200"} 1`))
}
