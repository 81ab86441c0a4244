package middlewares

import (
	"errors"
	"strconv"
	"time"

	"infinitiflow/cmd/server/handlers/httperr"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the app's collectors. A nil *Metrics records nothing.
type Metrics struct {
	authEvents *prometheus.CounterVec
}

// AuthEvent counts one authentication outcome, e.g. ("login", "locked").
func (m *Metrics) AuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

// normalizeRoutePath returns the route template to prevent high cardinality
// in metrics labels. Returns the actual path for unmatched routes (404s).
func normalizeRoutePath(c *fiber.Ctx) string {
	if route := c.Route(); route != nil {
		return route.Path
	}
	return c.Path()
}

// normalizeStatus returns the status code as a string for Prometheus metrics
// 2xx -> "2xx", 4xx -> "4xx", 5xx -> "5xx"
func normalizeStatus(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return strconv.Itoa(status)
}

// AttachMetrics gives the supplied Fiber app its own Prometheus registry,
// wires a /metrics endpoint plus request-timing middleware and registers any
// extra collectors.
func AttachMetrics(app *fiber.App, extra ...prometheus.Collector) *Metrics {
	reg := prometheus.NewRegistry()

	reqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	authEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication outcomes by event",
		},
		[]string{"event", "outcome"},
	)

	reg.MustRegister(reqDuration, reqTotal, authEvents)
	reg.MustRegister(extra...)

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		dur := time.Since(start).Seconds()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if code, ok := errorStatus(err); ok {
				status = code
			}
		}

		method := c.Method()
		path := normalizeRoutePath(c)
		label := normalizeStatus(status)

		reqDuration.WithLabelValues(method, path, label).Observe(dur)
		reqTotal.WithLabelValues(method, path, label).Inc()
		return err
	})

	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)

	return &Metrics{authEvents: authEvents}
}

// errorStatus is the status the global error handler will write for err.
func errorStatus(err error) (int, bool) {
	var e httperr.E
	if errors.As(err, &e) {
		return e.Status, true
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	if e, ok := httperr.FromDomain(err); ok {
		return e.Status, true
	}
	return 0, false
}
