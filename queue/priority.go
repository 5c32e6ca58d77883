package queue

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config configures a PriorityQueue.
type Config struct {
	// Capacity is the maximum number of live (not-yet-completed) tickets.
	// Default: 1000.
	Capacity int

	// RequestTimeout bounds total queue-plus-execution time for a ticket.
	// Default: 30s.
	RequestTimeout time.Duration

	// DispatchInterval is the fallback period between dispatcher passes
	// when no Enqueue has woken it sooner. Default: 20ms.
	DispatchInterval time.Duration

	// Coalescer finds near-duplicate recent prompts. If nil, coalescence
	// is disabled and every Enqueue creates a new ticket.
	Coalescer *Coalescer

	// OnStateChange, if set, is called for dispatcher-visible lifecycle
	// events ("dispatched", "timeout", "cancelled") for
	// ambient observability wiring. Never called under the queue's lock.
	OnStateChange func(event string, t *Ticket)
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.DispatchInterval <= 0 {
		c.DispatchInterval = 20 * time.Millisecond
	}
	return c
}

// PriorityQueue is the gateway's priority request queue: effective-priority
// dispatch with starvation prevention, plus (optionally) coalescence on
// enqueue.
//
// The queue has a single lock that is only ever held while structurally
// mutating the pending slice; long operations (the dispatched operation
// itself, retry sleeps, HTTP calls) always run outside it, in their own
// goroutine.
type PriorityQueue struct {
	cfg Config

	mu      sync.Mutex
	pending []*Ticket
	live    atomic.Int64

	wake     chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a PriorityQueue and starts its dispatcher goroutine. Call
// Close to stop it.
func New(cfg Config) *PriorityQueue {
	cfg = cfg.withDefaults()
	q := &PriorityQueue{
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	go q.dispatchLoop()
	return q
}

// Close stops the dispatcher goroutine. Pending tickets are left
// un-dispatched; callers should fail them via their own context.
func (q *PriorityQueue) Close() {
	q.stopOnce.Do(func() { close(q.stopCh) })
}

// Enqueue admits a ticket's work for priority dispatch, or coalesces it
// onto an already-live similar ticket. It returns the ticket that the
// caller should Wait on (which may not be a newly created one).
func (q *PriorityQueue) Enqueue(ctx context.Context, model, prompt string, maxTokens, priority int, op Operation) (*Ticket, error) {
	similarity := 1.0
	if q.cfg.Coalescer != nil {
		existing, score, ok := q.cfg.Coalescer.FindSimilar(prompt)
		if ok && existing.IsLive() {
			return existing, nil
		}
		similarity = score
	}

	if q.live.Load() >= int64(q.cfg.Capacity) {
		return nil, ErrQueueFull
	}

	t := NewTicket(ctx, model, prompt, maxTokens, priority, q.cfg.RequestTimeout, op)
	t.SimilarityScore = similarity
	q.live.Add(1)
	go func() {
		<-t.Done()
		q.live.Add(-1)
		if q.cfg.Coalescer != nil {
			q.cfg.Coalescer.Forget(t.ID)
		}
	}()

	if q.cfg.Coalescer != nil {
		q.cfg.Coalescer.Register(t)
	}

	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return t, nil
}

// Len returns the number of tickets currently awaiting dispatch.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *PriorityQueue) dispatchLoop() {
	ticker := time.NewTicker(q.cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-q.wake:
		case <-ticker.C:
		}
		q.runPass()
	}
}

// runPass implements one dispatcher pass: drain, drop dead/expired
// tickets, bump starvation on survivors, dispatch the single
// highest-priority survivor, and re-queue the rest with recomputed
// effective priority (§4.4).
func (q *PriorityQueue) runPass() {
	q.mu.Lock()
	scratch := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(scratch) == 0 {
		return
	}

	now := time.Now()
	survivors := scratch[:0:0]

	for _, t := range scratch {
		select {
		case <-t.Ctx.Done():
			t.Complete(Result{Err: ErrCancelled})
			q.notify("cancelled", t)
			continue
		default:
		}

		if t.Expired(now) {
			t.Complete(Result{Err: ErrTimeout})
			q.notify("timeout", t)
			continue
		}

		t.BumpStarvation()
		survivors = append(survivors, t)
	}

	if len(survivors) == 0 {
		return
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return effectivePriority(survivors[i], now) < effectivePriority(survivors[j], now)
	})

	picked := survivors[0]
	rest := survivors[1:]

	go func(t *Ticket) {
		t.Run(t.Ctx)
	}(picked)
	q.notify("dispatched", picked)

	if len(rest) > 0 {
		q.mu.Lock()
		q.pending = append(rest, q.pending...)
		q.mu.Unlock()

		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

func (q *PriorityQueue) notify(event string, t *Ticket) {
	if q.cfg.OnStateChange != nil {
		q.cfg.OnStateChange(event, t)
	}
}

// effectivePriority computes the §4.4 dispatch score. Lower dispatches
// first.
func effectivePriority(t *Ticket, now time.Time) float64 {
	starvationBonus := math.Min(5, float64(t.StarvationCounter())) * 2
	waitingSeconds := now.Sub(t.EnqueuedAt).Seconds()
	waitingBonus := math.Min(10, waitingSeconds/30) * 3
	similarityBonus := (1 - t.SimilarityScore) * 2

	return -(float64(t.NominalPriority) + starvationBonus + waitingBonus + similarityBonus)
}
