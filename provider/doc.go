// Package provider performs one upstream HTTP call against an
// Anthropic-Messages-API-shaped completion endpoint: it builds the
// request body, sets the required headers, parses the rate-limit
// response headers, checks the HTTP status, and deserializes the
// response envelope.
//
// Client exposes no retry or queueing of its own — the failover
// package's per-provider retry loop, the resilience package's circuit
// breaker, and the queue package's
// dispatcher, are responsible for when and how often Complete gets
// called.
package provider
