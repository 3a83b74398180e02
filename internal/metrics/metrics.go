package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry     *prometheus.Registry
	appointments *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		appointments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "appointments_total",
			Help:      "Appointments created or canceled.",
		}, []string{"event"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "appointment_rejections_total",
			Help:      "Appointment requests rejected by a business rule.",
		}, []string{"reason"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "jobs_processed_total",
			Help:      "Background jobs processed, by handler key and outcome.",
		}, []string{"key", "outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agenda",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.appointments,
		m.rejections,
		m.jobs,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry; a nil Metrics serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) AppointmentCreated() {
	if m == nil {
		return
	}
	m.appointments.WithLabelValues("created").Inc()
}

func (m *Metrics) AppointmentCanceled() {
	if m == nil {
		return
	}
	m.appointments.WithLabelValues("canceled").Inc()
}

func (m *Metrics) AppointmentRejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) JobProcessed(key, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(key, outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
