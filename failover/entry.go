package failover

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/aperturestack/llmgateway/health"
	"github.com/aperturestack/llmgateway/observe"
	"github.com/aperturestack/llmgateway/provider"
	"github.com/aperturestack/llmgateway/ratelimit"
	"github.com/aperturestack/llmgateway/resilience"
)

// RetryConfig configures a provider entry's retry-with-jitter behavior
// (§4.3).
type RetryConfig struct {
	// MaxAttempts is the maximum number of HTTP calls per entry,
	// including the first. Default: 3.
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 1s.
	InitialDelay time.Duration

	// BackoffMultiplier multiplies the delay after each attempt.
	// Default: 2.0.
	BackoffMultiplier float64

	// JitterFactor bounds the uniform jitter added to each delay, as a
	// fraction of the delay. Default: 0.1.
	JitterFactor float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = 0.1
	}
	return c
}

// ProviderConfig describes one upstream backend and its resilience
// knobs.
type ProviderConfig struct {
	Name     string
	Priority int // lower dispatches first
	Endpoint string
	APIToken string

	Bucket       ratelimit.Config
	Breaker      resilience.CircuitBreakerConfig
	LiveGate     resilience.RateLimiterConfig
	Bulkhead     resilience.BulkheadConfig
	Retry        RetryConfig
	HTTPProvider *provider.Client // overrides the constructed client, for tests

	// Observer supplies the tracer and metrics this entry records each
	// call attempt against. Defaults to observe.NoopObserver() when nil.
	Observer observe.Observer
}

// ProviderEntry is one ordered backend: its own circuit breaker, rate
// limiter, bulkhead, token bucket, and a health checker derived from its
// breaker state (§3's Provider Entry data model).
type ProviderEntry struct {
	Name     string
	Priority int

	client   *provider.Client
	bucket   *ratelimit.DualBucket
	breaker  *resilience.CircuitBreaker
	liveGate *resilience.RateLimiter
	bulkhead *resilience.Bulkhead
	retry    RetryConfig
	checker  health.Checker
	tracer   observe.Tracer
	metrics  observe.Metrics
}

// NewProviderEntry builds a ProviderEntry from configuration.
func NewProviderEntry(cfg ProviderConfig) *ProviderEntry {
	client := cfg.HTTPProvider
	if client == nil {
		client = provider.New(provider.Config{Endpoint: cfg.Endpoint, APIToken: cfg.APIToken})
	}

	obs := cfg.Observer
	if obs == nil {
		obs = observe.NoopObserver()
	}
	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		metrics, _ = observe.NewMetrics(observe.NoopObserver().Meter())
	}

	pe := &ProviderEntry{
		Name:     cfg.Name,
		Priority: cfg.Priority,
		client:   client,
		bucket:   ratelimit.NewDualBucket(cfg.Bucket),
		breaker:  resilience.NewCircuitBreaker(cfg.Breaker),
		liveGate: resilience.NewRateLimiter(cfg.LiveGate),
		bulkhead: resilience.NewBulkhead(cfg.Bulkhead),
		retry:    cfg.Retry.withDefaults(),
		tracer:   observe.NewTracer(obs.Tracer()),
		metrics:  metrics,
	}
	pe.checker = health.NewCheckerFunc(cfg.Name, pe.checkHealth)
	return pe
}

// isHealthy reports the rate limiter's liveness bit: a provider with no
// headroom left in its local leaky-bucket gate is skipped in favor of a
// lower-priority peer, without consuming one of its real admission
// tokens (Tokens() only refills and peeks).
func (pe *ProviderEntry) isHealthy() bool {
	return pe.liveGate.Tokens() > 0
}

// checkHealth adapts this entry's breaker state into a health.Result for
// the admin surface's aggregator (a supplemental feature beyond §4.2's
// core state machine).
func (pe *ProviderEntry) checkHealth(ctx context.Context) health.Result {
	switch pe.breaker.State() {
	case resilience.StateOpen:
		return health.Unhealthy(pe.Name+": circuit open", resilience.ErrCircuitOpen)
	case resilience.StateHalfOpen:
		return health.Degraded(pe.Name + ": circuit half-open")
	default:
		return health.Healthy(pe.Name + ": circuit closed")
	}
}

// Checker exposes this entry's health checker for aggregation.
func (pe *ProviderEntry) Checker() health.Checker { return pe.checker }

// call runs the §4.3 retry algorithm against this provider: each
// attempt is wrapped by the circuit breaker (so every attempt records
// exactly one breaker outcome), gated by this provider's own dual token
// bucket, with the server's x-ratelimit-reset value overriding the next
// delay on a 429 and jitter drawn uniformly from [0, JitterFactor) of
// the delay.
func (pe *ProviderEntry) call(ctx context.Context, req provider.Request) (string, error) {
	if err := pe.bulkhead.Acquire(ctx); err != nil {
		return "", err
	}
	defer pe.bulkhead.Release()

	delay := pe.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= pe.retry.MaxAttempts; attempt++ {
		if err := pe.bucket.TryConsume(ctx); err != nil {
			return "", err
		}

		if err := pe.waitPrecallDelay(ctx); err != nil {
			return "", err
		}

		meta := observe.CallMeta{Name: pe.Name, Namespace: req.Model}
		spanCtx, span := pe.tracer.StartSpan(ctx, meta)
		start := time.Now()

		var text string
		breakerErr := pe.breaker.Execute(spanCtx, func(ctx context.Context) error {
			var callErr error
			text, _, callErr = pe.completeAndRecord(ctx, req)
			return callErr
		})

		pe.tracer.EndSpan(span, breakerErr)
		pe.metrics.RecordExecution(ctx, meta, time.Since(start), breakerErr)

		if breakerErr == nil {
			return text, nil
		}
		lastErr = breakerErr

		if errors.Is(breakerErr, resilience.ErrCircuitOpen) {
			return "", breakerErr
		}

		statusErr, isStatus := asStatusError(breakerErr)
		retryable := (isStatus && statusErr.Retryable()) || (!isStatus && isTransportError(breakerErr))
		if !retryable {
			return "", breakerErr
		}
		if attempt >= pe.retry.MaxAttempts {
			break
		}

		if isStatus && statusErr.StatusCode == 429 && statusErr.ResetHint > 0 {
			delay = statusErr.ResetHint
		}
		jitter := time.Duration(rand.Float64() * pe.retry.JitterFactor * float64(delay))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay + jitter):
		}

		delay = time.Duration(float64(delay) * pe.retry.BackoffMultiplier)
	}

	return "", lastErr
}

// waitPrecallDelay applies the §4.6 pre-call adaptive delay: when this
// entry's bucket is down to its last couple of tokens, sleep long enough
// that the upcoming call is unlikely to be refused outright, recording the
// delay actually applied (including 0) as a metric.
func (pe *ProviderEntry) waitPrecallDelay(ctx context.Context) error {
	delay := pe.bucket.Snapshot().PrecallDelay()
	pe.metrics.RecordPrecallDelay(ctx, pe.Name, delay)
	if delay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// BucketSnapshot exposes this entry's token bucket state for the admin
// status surface (§4's per-provider bucket snapshot).
func (pe *ProviderEntry) BucketSnapshot() ratelimit.Snapshot {
	return pe.bucket.Snapshot()
}

func (pe *ProviderEntry) completeAndRecord(ctx context.Context, req provider.Request) (string, ratelimit.HeaderSnapshot, error) {
	text, snap, err := pe.client.Complete(ctx, req)
	pe.bucket.UpdateFromHeaders(snap)
	return text, snap, err
}

func asStatusError(err error) (*provider.StatusError, bool) {
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// isTransportError treats anything that isn't a recognized *StatusError
// as a transient transport failure (§4.3's "transient transport error").
func isTransportError(err error) bool {
	return err != nil
}
