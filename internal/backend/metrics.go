package backend

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jo-hoe/gobula/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobula_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gobula_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	bulaOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobula_bula_operations_total",
			Help: "Bula operations by outcome (ok, not_found, error).",
		},
		[]string{"operation", "result"},
	)
)

// MetricsMiddleware records request counts and latencies per route template.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var httpError *echo.HTTPError
				if errors.As(err, &httpError) {
					status = httpError.Code
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func recordOperation(operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, core.ErrBulaNotFound), errors.Is(err, core.ErrImageNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	bulaOperationsTotal.WithLabelValues(operation, result).Inc()
}
