// Package resilience provides resilience patterns for provider calls.
//
// It implements common reliability patterns that help the gateway handle
// upstream provider failures gracefully. failover.ProviderEntry composes
// these patterns directly around each provider's HTTP call: a circuit
// breaker, a live-traffic rate limiter, and a bulkhead, with its own
// per-attempt retry loop driving all three.
//
// # Ecosystem Position
//
// resilience sits between the failover director and the provider HTTP client:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                     Provider Call Flow                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│   failover          resilience               External           │
//	│   ┌──────┐        ┌───────────┐            ┌─────────┐         │
//	│   │Entry │───────▶│ Breaker   │───────────▶│Provider │         │
//	│   │.call │        │ LiveGate  │            │   API   │         │
//	│   └──────┘        │ Bulkhead  │            └─────────┘         │
//	│                   └───────────┘                                │
//	│                                                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Resilience Patterns
//
// The package provides three core patterns:
//
//   - [CircuitBreaker]: Prevents cascading failures by stopping requests to
//     failing services after a threshold is reached. Transitions through
//     Closed → Open → HalfOpen states.
//
//   - [RateLimiter]: Token bucket rate limiting to prevent overwhelming
//     downstream services. Supports burst allowance and wait-on-limit.
//
//   - [Bulkhead]: Semaphore-based concurrency limiting to prevent resource
//     exhaustion and isolate failures.
//
// [Timeout] is also provided for operations that need a standalone
// context deadline outside a composed pipeline.
//
// # Quick Start
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 0.5,
//	    ResetTimeout:     time.Minute,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return callProvider(ctx)
//	})
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//
//   - [CircuitBreaker]: Execute() and State() are mutex-protected; Reset() is safe
//   - [RateLimiter]: Allow(), AllowN(), Wait(), Execute() are mutex-protected
//   - [Bulkhead]: Acquire(), Release(), Execute() use channel-based semaphore
//   - [Timeout]: Execute() is stateless and safe for concurrent use
//
// # Error Handling
//
// Each pattern returns specific sentinel errors (use errors.Is for checking):
//
//   - [ErrCircuitOpen]: Circuit breaker is in open state, rejecting requests
//   - [ErrRateLimitExceeded]: Rate limit exceeded and no wait configured
//   - [ErrBulkheadFull]: Bulkhead at maximum concurrency
//   - [ErrTimeout]: Operation exceeded configured timeout
//
// Example error handling:
//
//	err := pe.call(ctx, req)
//	if errors.Is(err, resilience.ErrCircuitOpen) {
//	    // Provider is unhealthy, circuit is protecting it; the director
//	    // fails over to the next provider.
//	}
//
// # Callbacks and Observability
//
// CircuitBreakerConfig.OnStateChange is called on state transitions, and
// CircuitBreakerConfig.IsFailure allows custom failure classification.
//
// # Integration with the gateway
//
// resilience integrates with the rest of the llmgateway module:
//
//   - failover: composes CircuitBreaker, RateLimiter, and Bulkhead around
//     each ProviderEntry's call path
//   - health: uses CircuitBreaker.State() to derive per-provider health
package resilience
