// Package failover selects among multiple LLM provider entries, ordered
// by priority, skipping entries whose circuit is open or whose local
// liveness gate is exhausted, and retrying each entry individually
// before falling through to the next.
package failover

import (
	"context"
	"sort"
	"sync"

	"github.com/aperturestack/llmgateway/provider"
	"github.com/aperturestack/llmgateway/resilience"
)

// Director dispatches a completion request across an ordered set of
// provider entries (§4.4's failover sequence).
type Director struct {
	mu      sync.RWMutex
	entries []*ProviderEntry
}

// NewDirector builds a Director from provider entries, sorted by
// ascending Priority (lower dispatches first).
func NewDirector(entries ...*ProviderEntry) (*Director, error) {
	if len(entries) == 0 {
		return nil, ErrNoProviders
	}

	sorted := make([]*ProviderEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return &Director{entries: sorted}, nil
}

// Providers returns the entries in dispatch order.
func (d *Director) Providers() []*ProviderEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*ProviderEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Complete tries each provider entry in priority order, skipping any
// whose breaker is open or whose liveness gate is exhausted. A provider
// is only charged against the aggregate failure once its own retry
// budget (§4.3) is exhausted. If every provider fails, Complete returns
// an *AllProvidersFailedError carrying every attempted provider's
// terminal error.
func (d *Director) Complete(ctx context.Context, req provider.Request) (string, error) {
	entries := d.Providers()

	var failures []ProviderFailure
	attempted := false

	for _, pe := range entries {
		if !pe.isHealthy() || pe.breaker.State() == resilience.StateOpen {
			continue
		}

		attempted = true
		text, err := pe.call(ctx, req)
		if err == nil {
			return text, nil
		}
		failures = append(failures, ProviderFailure{Provider: pe.Name, Err: err})

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if !attempted {
		// Every provider was skipped (open breaker or exhausted liveness
		// gate); fall
		// back to attempting the first one anyway so a caller still
		// gets a concrete error instead of a silent empty failure list.
		pe := entries[0]
		text, err := pe.call(ctx, req)
		if err == nil {
			return text, nil
		}
		failures = append(failures, ProviderFailure{Provider: pe.Name, Err: err})
	}

	return "", &AllProvidersFailedError{Failures: failures}
}
