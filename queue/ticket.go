package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the terminal outcome delivered to a ticket's waiters. Exactly
// one of Value/Err is meaningful, mirroring the "same terminal outcome"
// invariant on Pending Batch and on coalesced tickets (spec §3, §8).
type Result struct {
	Value string
	Err   error
}

// Operation is the unit of work a dispatched ticket runs. It is supplied by
// the caller of Enqueue (typically the batcher, see package batch) and
// produces the Result broadcast to the ticket and all its coalesced
// waiters.
type Operation func(ctx context.Context) Result

// Ticket is one caller's pending completion request.
//
// A Ticket is owned by its queue slot until dispatch; after dispatch it
// becomes jointly observable by the worker producing the result and by
// every coalesced caller waiting on Wait. Completion is broadcast by
// closing an internal channel, so an arbitrary number of waiters may
// observe the same terminal Result.
type Ticket struct {
	ID       string
	Model    string
	Prompt   string
	MaxToken int

	// NominalPriority is the caller-supplied priority; higher wins.
	NominalPriority int

	EnqueuedAt time.Time
	Deadline   time.Time
	Ctx        context.Context

	// CoalescenceGroupID is the opaque id shared by every caller whose
	// request coalesced onto this ticket.
	CoalescenceGroupID string

	// SimilarityScore defaults to 1.0 for a freshly created ticket (a
	// ticket is only ever compared against its own window occupant at
	// coalescence-check time, never retroactively — see SPEC_FULL.md §5.2).
	SimilarityScore float64

	op Operation

	mu            sync.Mutex
	starvationCnt int
	done          chan struct{}
	result        Result
	resultSet     bool
}

// NewTicket creates a ticket ready for enqueue. op is the work to run once
// the ticket is dispatched.
func NewTicket(ctx context.Context, model, prompt string, maxTokens, priority int, deadline time.Duration, op Operation) *Ticket {
	now := time.Now()
	id := uuid.NewString()
	return &Ticket{
		ID:                 id,
		Model:              model,
		Prompt:             prompt,
		MaxToken:           maxTokens,
		NominalPriority:    priority,
		EnqueuedAt:         now,
		Deadline:           now.Add(deadline),
		Ctx:                ctx,
		CoalescenceGroupID: id,
		SimilarityScore:    1.0,
		op:                 op,
		done:               make(chan struct{}),
	}
}

// StarvationCounter returns the current starvation counter.
func (t *Ticket) StarvationCounter() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starvationCnt
}

// BumpStarvation increments the starvation counter by one. Called by the
// dispatcher once per pass for every surviving ticket (§4.4).
func (t *Ticket) BumpStarvation() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starvationCnt++
}

// IsLive reports whether the ticket has neither completed nor had its
// context cancelled.
func (t *Ticket) IsLive() bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case <-t.Ctx.Done():
		return false
	default:
		return true
	}
}

// Expired reports whether the ticket's deadline has passed.
func (t *Ticket) Expired(now time.Time) bool {
	return now.After(t.Deadline)
}

// Run executes the ticket's operation and broadcasts the result. Run must
// be called by at most one goroutine at a time per ticket (the dispatcher
// guarantees this).
func (t *Ticket) Run(ctx context.Context) {
	t.Complete(t.op(ctx))
}

// Complete broadcasts a terminal result to the ticket and everyone waiting
// on it. Complete is idempotent; only the first call has any effect.
func (t *Ticket) Complete(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resultSet {
		return
	}
	t.result = r
	t.resultSet = true
	close(t.done)
}

// Wait blocks until the ticket completes or ctx is done.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		r := t.result
		t.mu.Unlock()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Done returns the channel closed on completion, for use alongside select
// statements that also watch for cancellation.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}
