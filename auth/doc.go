// Package auth provides authentication and authorization primitives for the
// gateway's admin surface.
//
// It supports API key authentication against an in-memory store, plus
// allow-all/deny-all authorizers for simple policy gating. The package is
// protocol-agnostic and can be used with any transport layer; the gateway
// wires it into its admin HTTP handler, not the provider call path.
package auth
