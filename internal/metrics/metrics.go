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

// Metrics holds the collectors of one service. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	reservationsCreated *prometheus.CounterVec
	reservationStatus   *prometheus.CounterVec
	codesGenerated      *prometheus.CounterVec
	codesRedeemed       prometheus.Counter
	ticketsIssued       *prometheus.CounterVec
	payments            *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests by route and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reservationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reservations_created_total",
			Help:        "Table reservations created by source.",
			ConstLabels: labels,
		}, []string{"source"}),
		reservationStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reservation_status_changes_total",
			Help:        "Reservation status transitions.",
			ConstLabels: labels,
		}, []string{"status"}),
		codesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "codes_generated_total",
			Help:        "Promotional codes generated by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		codesRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "codes_redeemed_total",
			Help:        "Successful code redemptions.",
			ConstLabels: labels,
		}),
		ticketsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tickets_issued_total",
			Help:        "Tickets issued by channel.",
			ConstLabels: labels,
		}, []string{"channel"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payments_total",
			Help:        "Payment outcomes.",
			ConstLabels: labels,
		}, []string{"status"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rate_limited_requests_total",
			Help:        "Requests rejected by the rate limiter.",
			ConstLabels: labels,
		}, []string{"prefix"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.reservationsCreated,
		m.reservationStatus,
		m.codesGenerated,
		m.codesRedeemed,
		m.ticketsIssued,
		m.payments,
		m.rateLimited,
	)

	return m
}

// Middleware records request count and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ReservationCreated(source string) {
	if m != nil {
		m.reservationsCreated.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) ReservationStatusChanged(status string) {
	if m != nil {
		m.reservationStatus.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) CodesGenerated(codeType string, n int) {
	if m != nil {
		m.codesGenerated.WithLabelValues(codeType).Add(float64(n))
	}
}

func (m *Metrics) CodeRedeemed() {
	if m != nil {
		m.codesRedeemed.Inc()
	}
}

func (m *Metrics) TicketsIssued(channel string, n int) {
	if m != nil {
		m.ticketsIssued.WithLabelValues(channel).Add(float64(n))
	}
}

func (m *Metrics) Payment(status string) {
	if m != nil {
		m.payments.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) RateLimited(prefix string) {
	if m != nil {
		m.rateLimited.WithLabelValues(prefix).Inc()
	}
}
