package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/shutirtha-roy/tdp-chatbot-project/internal/http"

// HTTPMetrics holds request instruments.
type HTTPMetrics struct {
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates instruments on the global meter provider. An
// instrument that fails to register is logged and skipped.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter(httpInstrumentationName)
	m := &HTTPMetrics{}

	var err error
	m.requestsTotal, err = meter.Int64Counter(
		"tdpchat.http.requests_total",
		metric.WithDescription("Total HTTP requests by method, route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}

	// Chat requests wait on the model, so buckets run long.
	m.requestDur, err = meter.Float64Histogram(
		"tdpchat.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"tdpchat.http.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create active requests gauge", zap.Error(err))
	}
	return m
}

// MetricsMiddleware records each request. Handler errors are rendered here
// so the recorded status is the one sent.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			if err := next(c); err != nil {
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}
			return nil
		}
	}
}

// routeLabel uses the matched route pattern (e.g. /chat/:session_id) so
// session ids never become label values.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
