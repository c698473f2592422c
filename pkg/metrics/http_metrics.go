package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one service instance
type Metrics struct {
	ServiceName string

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	statusCategory  *prometheus.CounterVec

	storeOperationDuration *prometheus.HistogramVec
	authAttempts           *prometheus.CounterVec
	documentOperations     *prometheus.CounterVec
	fieldOperations        *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. The prefix is prepended to every metric name.
func New(serviceName, prefix string, reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	name := func(s string) string {
		if prefix == "" {
			return s
		}
		return prefix + "_" + s
	}

	return &Metrics{
		ServiceName: serviceName,
		gatherer:    reg,

		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("http_requests_total"),
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name("http_request_duration_seconds"),
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		statusCategory: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("http_status_category_total"),
				Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
			},
			[]string{"service", "category", "method", "path"},
		),
		storeOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name("store_operation_duration_seconds"),
				Help:    "Duration of document store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		authAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("auth_attempts_total"),
				Help: "Total number of login and token checks by result",
			},
			[]string{"kind", "result"},
		),
		documentOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("document_operations_total"),
				Help: "Total number of successful document operations",
			},
			[]string{"operation"},
		),
		fieldOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("field_operations_total"),
				Help: "Total number of successful schema field operations",
			},
			[]string{"operation"},
		),
	}
}

// NewNop returns metrics registered on a private registry, for tests and tools
func NewNop() *Metrics {
	return New("nop", "", prometheus.NewRegistry())
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			m.requests.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			m.requestDuration.WithLabelValues(m.ServiceName, method, path, statusStr).Observe(time.Since(start).Seconds())
			if category := statusCategory(status); category != "" {
				m.statusCategory.WithLabelValues(m.ServiceName, category, method, path).Inc()
			}

			return nil
		}
	}
}

// TrackStoreOperation returns a function that records the duration of a store operation
func (m *Metrics) TrackStoreOperation(operation string) func(startTime time.Time) {
	return func(startTime time.Time) {
		m.storeOperationDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}
}

// RecordAuthAttempt counts a login or token verification by result
func (m *Metrics) RecordAuthAttempt(kind string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.authAttempts.WithLabelValues(kind, result).Inc()
}

// RecordDocumentOperation increments the counter for document operations. Schema names come from
// callers and are not used as labels.
func (m *Metrics) RecordDocumentOperation(operation string) {
	m.documentOperations.WithLabelValues(operation).Inc()
}

// RecordFieldOperation increments the counter for schema field operations
func (m *Metrics) RecordFieldOperation(operation string) {
	m.fieldOperations.WithLabelValues(operation).Inc()
}

// Handler returns an HTTP handler exposing the registry this Metrics was built on
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
