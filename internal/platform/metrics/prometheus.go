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

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	admissionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admissions_opened_total",
			Help: "Total number of admissions created",
		},
	)

	bedTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bed_status_transitions_total",
			Help: "Total number of bed status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinical_orders_created_total",
			Help: "Total number of clinical orders created",
		},
		[]string{"kind"},
	)

	stockMovesRealized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_moves_realized_total",
			Help: "Total number of stock moves realized on approval",
		},
		[]string{"kind"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware returns echo middleware recording request counts and latency.
// Route path templates (e.g. /api/v1/beds/:id) are used as the path label to
// keep cardinality bounded.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// RecordAdmissionOpened records an admission creation.
func RecordAdmissionOpened() {
	admissionsOpened.Inc()
}

// RecordBedTransition records a bed status transition.
func RecordBedTransition(fromStatus, toStatus string) {
	bedTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordOrderCreated records a clinical order creation.
func RecordOrderCreated(kind string) {
	ordersCreated.WithLabelValues(kind).Inc()
}

// RecordStockMove records a realized stock move.
func RecordStockMove(kind string) {
	stockMovesRealized.WithLabelValues(kind).Inc()
}
