package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Header names the upstream uses to advertise current rate-limit
// accounting. See spec §6 External Interfaces.
const (
	HeaderRemainingRequests = "x-ratelimit-remaining-requests"
	HeaderRemainingTokens   = "x-ratelimit-remaining-tokens"
	HeaderReset             = "x-ratelimit-reset"
)

// HeaderSnapshot is the parsed form of one upstream response's rate-limit
// headers.
type HeaderSnapshot struct {
	RemainingRequests int
	RemainingTokens   int
	Reset             time.Duration
}

// ParseHeaders extracts a HeaderSnapshot from an HTTP response header set.
// ok is false unless all three recognized headers parsed successfully, per
// spec §4.1 ("When all three parse, update the snapshot atomically.").
func ParseHeaders(h http.Header) (snap HeaderSnapshot, ok bool) {
	reqStr := h.Get(HeaderRemainingRequests)
	tokStr := h.Get(HeaderRemainingTokens)
	resetStr := h.Get(HeaderReset)

	remReq, err := strconv.Atoi(reqStr)
	if err != nil {
		return HeaderSnapshot{}, false
	}
	remTok, err := strconv.Atoi(tokStr)
	if err != nil {
		return HeaderSnapshot{}, false
	}
	resetSecs, err := strconv.ParseFloat(resetStr, 64)
	if err != nil {
		return HeaderSnapshot{}, false
	}

	return HeaderSnapshot{
		RemainingRequests: remReq,
		RemainingTokens:   remTok,
		Reset:             time.Duration(resetSecs * float64(time.Second)),
	}, true
}
