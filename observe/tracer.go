package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta describes one provider completion attempt for telemetry
// purposes (one span, one metric observation per failover.ProviderEntry
// attempt).
type CallMeta struct {
	ID        string   // Fully qualified call ID (model.provider or just provider)
	Namespace string   // Model name (may be empty)
	Name      string   // Provider name (required)
	Version   string   // Provider API version, if known (optional)
	Tags      []string // Free-form tags for discovery (optional)
	Category  string   // Provider category, e.g. "primary"/"fallback" (optional)
}

// SpanName returns the deterministic span name for this call.
// Format: gateway.provider.call.<model>.<provider> or gateway.provider.call.<provider>
func (m CallMeta) SpanName() string {
	if m.Namespace != "" {
		return "gateway.provider.call." + m.Namespace + "." + m.Name
	}
	return "gateway.provider.call." + m.Name
}

// CallID returns the fully qualified call identifier.
// If ID field is set, returns it. Otherwise constructs from model and provider name.
func (m CallMeta) CallID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Namespace != "" {
		return m.Namespace + "." + m.Name
	}
	return m.Name
}

// Validate checks that meta carries the fields required for telemetry.
func (m CallMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingProviderName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with per-provider-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan derives the span's context from ctx; it reports no error, even when ctx is already canceled.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one provider call attempt.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer wrapping the given OpenTelemetry tracer, for
// callers (e.g. failover.ProviderEntry) that need a Tracer without going
// through MiddlewareFromObserver.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	spanName := meta.SpanName()

	// Build attributes
	attrs := []attribute.KeyValue{
		attribute.String("provider.call_id", meta.CallID()),
		attribute.String("provider.name", meta.Name),
		attribute.Bool("provider.error", false), // Will be updated in EndSpan if error
	}

	// Add namespace if present
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("provider.namespace", meta.Namespace))
	}

	// Add optional attributes if present
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("provider.version", meta.Version))
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("provider.category", meta.Category))
	}
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("provider.tags", meta.Tags))
	}

	ctx, span := t.tracer.Start(ctx, spanName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("provider.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
