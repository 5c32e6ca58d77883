// Package ratelimit implements the gateway's dual-window token bucket.
//
// It generalizes resilience.RateLimiter's single-window, lazily-refilled
// token bucket to two independent windows (per-second and per-minute) that
// must both be satisfied before a call is admitted, and adds adaptive
// refill-rate tuning driven by the upstream's own rate-limit response
// headers.
//
// # Admission
//
// TryConsume blocks (polling at a short interval) until both windows have
// at least one token, or until ctx is done. A grant always decrements both
// counters together; there is no partial consumption.
//
// # Adaptive tuning
//
// UpdateFromHeaders records the most recent remaining-requests,
// remaining-tokens, and reset hint reported by the upstream. While that
// snapshot is fresh (under a minute old), each refill pass nudges both
// refill rates down when either remaining percentage drops below 20%, and
// back up (never past the configured base rate) when both exceed 50%.
package ratelimit
