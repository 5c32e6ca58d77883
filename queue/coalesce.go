package queue

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SimilarityThreshold is the minimum similarity score for a new request to
// be coalesced onto an existing ticket (§4.4, §8 scenario 4).
const SimilarityThreshold = 0.85

// DefaultWindow is the recency window within which a ticket is eligible for
// coalescence.
const DefaultWindow = 30 * time.Second

// coalesceEntry is one recent (ticket, lowercased prompt, timestamp) triple.
type coalesceEntry struct {
	ticket  *Ticket
	prompt  string // already lowercased
	arrived time.Time
}

// Coalescer tracks recently enqueued tickets so near-duplicate concurrent
// prompts can be merged onto an already-in-flight ticket instead of
// dispatched twice.
//
// This replaces the original implementation's "soft reference" pattern
// (weak handles reaped by a garbage collector once unreferenced, see
// spec §9) with an explicit registration/deregistration protocol keyed by
// ticket id: Register adds an entry, Forget removes it, and the bounded LRU
// underneath reclaims space for anything neither completes nor is
// explicitly forgotten in time.
type Coalescer struct {
	window time.Duration

	mu    sync.Mutex
	cache *lru.Cache[string, *coalesceEntry]
}

// NewCoalescer creates a Coalescer holding at most maxEntries recent
// tickets within window. maxEntries <= 0 defaults to 512; window <= 0
// defaults to DefaultWindow.
func NewCoalescer(maxEntries int, window time.Duration) *Coalescer {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if window <= 0 {
		window = DefaultWindow
	}
	cache, err := lru.New[string, *coalesceEntry](maxEntries)
	if err != nil {
		// lru.New only errors on a non-positive size, which the defaulting
		// above already rules out.
		panic(err)
	}
	return &Coalescer{window: window, cache: cache}
}

// Register records t as a recent, live ticket eligible to be coalesced
// onto by a subsequent similar prompt.
func (c *Coalescer) Register(t *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(t.ID, &coalesceEntry{
		ticket:  t,
		prompt:  strings.ToLower(t.Prompt),
		arrived: time.Now(),
	})
}

// Forget removes a ticket from the coalescence index once it completes or
// is cancelled, so it can no longer be matched onto.
func (c *Coalescer) Forget(ticketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(ticketID)
}

// FindSimilar scores prompt against every live entry in the window and
// returns the highest-scoring one. found is true only when that score also
// exceeds SimilarityThreshold, meaning the caller should coalesce onto
// ticket rather than dispatch its own. score is returned even when found is
// false, so the caller can stamp a freshly created ticket's
// Ticket.SimilarityScore with it (§4.4's dissimilarity bonus needs the
// score of the closest window occupant, not just a yes/no verdict). When
// the window holds no live entry at all there is nothing to compare
// against, so score is the neutral 1.0 rather than a manufactured 0.
func (c *Coalescer) FindSimilar(prompt string) (ticket *Ticket, score float64, found bool) {
	lowered := strings.ToLower(prompt)
	now := time.Now()

	c.mu.Lock()
	keys := c.cache.Keys()
	var (
		best      *Ticket
		bestScore float64
		sawLive   bool
	)
	for _, key := range keys {
		entry, ok := c.cache.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(entry.arrived) > c.window {
			continue
		}
		sawLive = true
		s := similarity(lowered, entry.prompt)
		if s > bestScore {
			bestScore = s
			best = entry.ticket
		}
	}
	c.mu.Unlock()

	if !sawLive {
		return nil, 1.0, false
	}
	if best == nil || bestScore <= SimilarityThreshold {
		return nil, bestScore, false
	}
	return best, bestScore, true
}
