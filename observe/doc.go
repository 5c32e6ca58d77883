// Package observe provides OpenTelemetry-based observability for the
// gateway's provider call attempts.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the Observer into failover's
// per-provider call path and the gateway's queue event hook.
//
// # Overview
//
// observe provides three observability pillars:
//   - Tracing: OpenTelemetry spans with provider call attributes
//   - Metrics: Call counters, error counters, and duration/delay histograms
//   - Logging: Structured JSON logging with automatic field redaction
//
// # Core Components
//
//   - [Observer]: Main facade providing Tracer, Meter, and Logger access
//   - [Tracer]: Span creation with provider call metadata as span attributes
//   - [Metrics]: Records call counts, errors, durations, and precall delays
//   - [Logger]: Structured JSON logging with sensitive field redaction
//   - [Middleware]: Wraps ExecuteFunc with complete observability
//
// # Quick Start
//
//	cfg := observe.Config{
//	    ServiceName: "my-service",
//	    Version:     "1.0.0",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 1.0},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	}
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(ctx)
//
//	// Create middleware and wrap a provider call
//	mw, _ := observe.MiddlewareFromObserver(obs)
//	wrappedExec := mw.Wrap(originalExecuteFunc)
//
//	// Execute - automatically traced, metered, and logged
//	result, err := wrappedExec(ctx, callMeta, input)
//
// # Telemetry Details
//
// Tracing creates spans with deterministic names:
//   - With namespace: "gateway.provider.call.<namespace>.<name>" (e.g., "gateway.provider.call.github.create_issue")
//   - Without namespace: "gateway.provider.call.<name>" (e.g., "gateway.provider.call.read_file")
//
// Span attributes include:
//   - provider.call_id: Fully qualified call identifier
//   - provider.name: Provider name (required)
//   - provider.namespace: Model name (if set)
//   - provider.version: Provider API version (if set)
//   - provider.category: Provider category (if set)
//   - provider.tags: Discovery tags (if set)
//   - provider.error: Boolean indicating call failure
//
// Metrics recorded:
//   - gateway.provider.calls_total (counter): Total call attempts by provider
//   - gateway.provider.call_errors (counter): Total errors by provider
//   - gateway.provider.call_duration_ms (histogram): Duration distribution in milliseconds
//   - gateway.provider.precall_delay_ms (histogram): Pre-call adaptive delay in milliseconds
//
// The call metrics include labels: provider.call_id, provider.name, provider.namespace (if set);
// precall_delay_ms carries provider.name only.
//
// # Sensitive Field Redaction
//
// The logger automatically redacts these fields to prevent credential leakage:
//   - input, inputs
//   - password, secret, token
//   - api_key, apiKey, credential
//
// See [RedactedFields] for the complete list.
//
// # Exporter Configuration
//
// Tracing exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT)
//   - "jaeger": Jaeger via OTLP (requires OTEL_EXPORTER_JAEGER_ENDPOINT)
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// Metrics exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT)
//   - "prometheus": Prometheus scrape endpoint
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//   - [Observer]: Tracer(), Meter(), Logger() are safe; Shutdown() is idempotent
//   - [Tracer]: StartSpan() and EndSpan() are safe for concurrent use
//   - [Metrics]: RecordExecution() and RecordPrecallDelay() are safe for concurrent use
//   - [Logger]: All logging methods are mutex-protected
//   - [Middleware]: Wrap() returns a thread-safe ExecuteFunc
//
// # Error Handling
//
// Configuration errors (use errors.Is for checking):
//   - [ErrMissingServiceName]: Config.ServiceName is empty
//   - [ErrInvalidSamplePct]: Tracing.SamplePct not in [0.0, 1.0]
//   - [ErrInvalidTracingExporter]: Unknown tracing exporter name
//   - [ErrInvalidMetricsExporter]: Unknown metrics exporter name
//   - [ErrInvalidLogLevel]: Unknown log level
//
// Exporter errors:
//   - [ErrEndpointNotConfigured]: Required endpoint env var not set
//
// Runtime errors:
//   - [ErrNilObserver]: Nil Observer passed to function
//   - [ErrMissingProviderName]: CallMeta.Name is empty
//
// Example error handling:
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if errors.Is(err, observe.ErrMissingServiceName) {
//	    // Handle missing service name
//	}
//	if errors.Is(err, observe.ErrEndpointNotConfigured) {
//	    // Handle missing OTLP endpoint
//	}
//
// # Integration with the gateway
//
// observe integrates with the rest of the llmgateway module:
//   - failover: records a span and the call metrics for each provider call
//     attempt with the Tracer/Metrics pair; it does no per-call logging
//   - gateway: logs the priority queue's ticket lifecycle events
//     (dispatched, timeout, cancelled)
package observe
