package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	bookingsTotal       *prometheus.CounterVec
	checkinsTotal       *prometheus.CounterVec
	patientCallsTotal   prometheus.Counter
	noShowsTotal        *prometheus.CounterVec
	queueWaiting        *prometheus.GaugeVec
}

// New registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		bookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appointment_bookings_total",
				Help: "Appointments booked, by resulting status",
			},
			[]string{"status"},
		),
		checkinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_checkins_total",
				Help: "Queue tickets issued, by check-in method",
			},
			[]string{"method"},
		),
		patientCallsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clinic_patient_calls_total",
				Help: "Patients called into the consulting room",
			},
		),
		noShowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_no_shows_total",
				Help: "Appointments marked as no-show, by source",
			},
			[]string{"source"},
		),
		queueWaiting: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clinic_queue_waiting",
				Help: "Checked-in patients not yet called",
			},
			[]string{"schedule_id"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.bookingsTotal,
		m.checkinsTotal,
		m.patientCallsTotal,
		m.noShowsTotal,
		m.queueWaiting,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latencies by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCheckin(method string) {
	if m == nil {
		return
	}
	m.checkinsTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordCall() {
	if m == nil {
		return
	}
	m.patientCallsTotal.Inc()
}

// RecordNoShow counts a no-show; source is "doctor" or "sweep".
func (m *Metrics) RecordNoShow(source string) {
	if m == nil {
		return
	}
	m.noShowsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) SetQueueWaiting(scheduleID string, waiting int) {
	if m == nil {
		return
	}
	m.queueWaiting.WithLabelValues(scheduleID).Set(float64(waiting))
}

// ForgetQueue drops the gauge of a closed clinic session.
func (m *Metrics) ForgetQueue(scheduleID string) {
	if m == nil {
		return
	}
	m.queueWaiting.DeleteLabelValues(scheduleID)
}
