package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Payment metrics
	PaymentIntentsCreated *prometheus.CounterVec
	PaymentIntentErrors   *prometheus.CounterVec
	WebhookEvents         *prometheus.CounterVec
	ReconciliationFlags   *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),

		// Payment metrics
		PaymentIntentsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_intents_created_total",
				Help: "Total number of payment intents issued",
			},
			[]string{"plan"}, // 99, 499
		),
		PaymentIntentErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_intent_errors_total",
				Help: "Total number of rejected or failed payment intent requests",
			},
			[]string{"reason"}, // missing_fields, invalid_amount, processor
		),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of verified webhook events by outcome",
			},
			[]string{"type", "result"}, // result: processed, duplicate, ignored, error
		),
		ReconciliationFlags: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_reconciliation_flags_total",
				Help: "Total number of ledger rows flagged by reconciliation",
			},
			[]string{"reason"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, e.g. /payment-status/:id

			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordPaymentIntentCreated increments the issued counter for a monthly plan
func (m *Metrics) RecordPaymentIntentCreated(plan string) {
	if m == nil {
		return
	}
	m.PaymentIntentsCreated.WithLabelValues(plan).Inc()
}

// RecordPaymentIntentError increments the issuer error counter
func (m *Metrics) RecordPaymentIntentError(reason string) {
	if m == nil {
		return
	}
	m.PaymentIntentErrors.WithLabelValues(reason).Inc()
}

// RecordWebhookEvent increments the webhook counter
func (m *Metrics) RecordWebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, result).Inc()
}

// RecordReconciliationFlag increments the reconciliation counter
func (m *Metrics) RecordReconciliationFlag(reason string) {
	if m == nil {
		return
	}
	m.ReconciliationFlags.WithLabelValues(reason).Inc()
}
