package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records telemetry for the gateway's provider calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one provider call attempt's duration and
	// error status.
	RecordExecution(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordPrecallDelay records the §4.6 pre-call adaptive delay applied
	// before a provider call attempt (0 when no delay was applied).
	RecordPrecallDelay(ctx context.Context, provider string, delay time.Duration)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	precallDelay metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with the given meter, for
// callers (e.g. failover.ProviderEntry) that need a Metrics without going
// through MiddlewareFromObserver.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"gateway.provider.calls_total",
		metric.WithDescription("Total number of provider call attempts"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"gateway.provider.call_errors",
		metric.WithDescription("Total number of failed provider call attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"gateway.provider.call_duration_ms",
		metric.WithDescription("Provider call attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	precallDelay, err := meter.Float64Histogram(
		"gateway.provider.precall_delay_ms",
		metric.WithDescription("Pre-call adaptive delay applied before a provider call attempt, in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		precallDelay: precallDelay,
	}, nil
}

// RecordExecution records metrics for one provider call attempt.
func (m *metricsImpl) RecordExecution(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.call_id", meta.CallID()),
		attribute.String("provider.name", meta.Name),
	}

	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("provider.namespace", meta.Namespace))
	}

	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)

	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	durationMs := float64(duration.Milliseconds())
	m.durationHist.Record(ctx, durationMs, opt)
}

// RecordPrecallDelay records the pre-call adaptive delay applied before a
// provider call attempt.
func (m *metricsImpl) RecordPrecallDelay(ctx context.Context, provider string, delay time.Duration) {
	opt := metric.WithAttributes(attribute.String("provider.name", provider))
	m.precallDelay.Record(ctx, float64(delay.Milliseconds()), opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordPrecallDelay(ctx context.Context, provider string, delay time.Duration) {
}
