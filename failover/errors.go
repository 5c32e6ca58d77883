package failover

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProviders is returned by NewDirector when constructed with no
// entries.
var ErrNoProviders = errors.New("failover: no providers configured")

// ProviderFailure is one provider's terminal error within an aggregate
// AllProvidersFailedError.
type ProviderFailure struct {
	Provider string
	Err      error
}

// AllProvidersFailedError aggregates every provider's terminal error,
// carrying a structured per-provider breakdown (§6's AllProvidersFailed
// kind).
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return "failover: all providers failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the first provider's error so errors.Is/As can still
// match a well-known sentinel buried in the aggregate, per the common
// "wrap the most relevant cause" convention.
func (e *AllProvidersFailedError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Err
}
