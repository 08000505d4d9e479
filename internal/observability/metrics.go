package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics collects credential exchange metrics.
type Metrics interface {
	RecordEvaluation(ctx context.Context, labels EvaluationLabels, duration time.Duration)
}

// EvaluationLabels contains metric dimensions.
type EvaluationLabels struct {
	Verdict  string
	Source   string // which credential form decided: opaque, external or none
	Mutation string // set, delete or none
}

// ExchangeMetrics holds the OpenTelemetry instruments for the exchange.
type ExchangeMetrics struct {
	evaluations metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewExchangeMetricsWithProvider creates instruments on provider.
func NewExchangeMetricsWithProvider(provider metric.MeterProvider) (*ExchangeMetrics, error) {
	meter := provider.Meter("authgate/exchange")

	evaluations, err := meter.Int64Counter(
		"authgate.exchange.evaluations",
		metric.WithDescription("Credential exchange evaluations by verdict"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: dominated by the JWKS fetch on cold cache
	duration, err := meter.Float64Histogram(
		"authgate.exchange.duration",
		metric.WithDescription("Credential exchange evaluation latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	return &ExchangeMetrics{evaluations: evaluations, duration: duration}, nil
}

// RecordEvaluation records one finished evaluation.
func (m *ExchangeMetrics) RecordEvaluation(ctx context.Context, labels EvaluationLabels, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("verdict", labels.Verdict),
		attribute.String("source", labels.Source),
		attribute.String("mutation", labels.Mutation),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordEvaluation(context.Context, EvaluationLabels, time.Duration) {}
