package ratelimit

import "errors"

// Sentinel errors for the dual token bucket.
var (
	// ErrWaitCancelled is returned when the context is done before a grant
	// could be obtained.
	ErrWaitCancelled = errors.New("ratelimit: wait for token cancelled")
)
