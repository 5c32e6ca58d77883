// Package failover selects among an ordered list of upstream providers,
// skipping any whose circuit breaker is open or whose rate-limiter
// liveness gate reports them unhealthy, retrying a provider's own
// transient failures before giving up on it, and aggregating every
// provider's terminal error into a single caller-visible failure when
// none can serve the request (§4.7).
package failover
