package provider

import (
	"fmt"
	"time"
)

// retryableStatuses are the HTTP statuses the retry engine should treat
// as transient (§4.3, §6).
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// StatusError is returned when the upstream responds with a non-200
// status. ResetHint carries a parsed x-ratelimit-reset value when the
// response included one (meaningful on 429).
type StatusError struct {
	StatusCode int
	Body       string
	ResetHint  time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider: upstream status %d", e.StatusCode)
}

// Retryable reports whether the retry engine should retry a request
// that failed with this status (§4.3's retryable set).
func (e *StatusError) Retryable() bool {
	return retryableStatuses[e.StatusCode]
}
