package generation

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"

var (
	// RetriesTotal counts retried generation attempts.
	// Labels: reason (rate_limit, unavailable, timeout)
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdpchat",
			Subsystem: "generation",
			Name:      "retries_total",
			Help:      "Total number of retried generation attempts",
		},
		[]string{"reason"},
	)

	// FailuresTotal counts generation calls that failed after all retries.
	FailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tdpchat",
			Subsystem: "generation",
			Name:      "failures_total",
			Help:      "Total number of generation calls that failed after retries",
		},
	)
)

// Metrics holds generation latency instruments.
type Metrics struct {
	duration metric.Float64Histogram
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{}

	var err error
	m.duration, err = otel.Meter(instrumentationName).Float64Histogram(
		"tdpchat.generation.duration_seconds",
		metric.WithDescription("Duration of chat completion calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn("failed to create generation duration histogram", zap.Error(err))
	}
	return m
}

// RecordGeneration records one completion call. Safe on a nil receiver.
func (m *Metrics) RecordGeneration(ctx context.Context, model string, duration time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("model", model),
		attribute.Bool("success", err == nil),
	))
}
