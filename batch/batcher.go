package batch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Result is the terminal outcome shared by every member of a flushed
// batch (§4.5's "every member receives the same outcome").
type Result struct {
	Value string
	Err   error
}

// FlushFunc performs the single upstream operation for a batch once it is
// flushed. It is supplied by the caller (the gateway facade), which wires
// it through the priority queue, token bucket, retry engine and circuit
// breaker; the batcher itself knows nothing about any of that.
type FlushFunc func(ctx context.Context, key Key) (string, error)

// Config configures a Batcher.
type Config struct {
	// MaxBatchAge is how long a batch's oldest member may wait before the
	// sweeper flushes it. Default: 500ms (§6's maxBatchAgeMs).
	MaxBatchAge time.Duration

	// SweepInterval is how often the sweeper scans for batches to flush.
	// Default: 1s (§4.5's "periodic sweep (approximately every second)").
	SweepInterval time.Duration

	// MaxConcurrentFlushes bounds, across every batch key at once, how
	// many flushes may have their upstream operation in flight
	// simultaneously. Default: 16.
	MaxConcurrentFlushes int64

	// Flush performs the upstream operation for one flushed batch.
	Flush FlushFunc
}

func (c Config) withDefaults() Config {
	if c.MaxBatchAge <= 0 {
		c.MaxBatchAge = 500 * time.Millisecond
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Second
	}
	if c.MaxConcurrentFlushes <= 0 {
		c.MaxConcurrentFlushes = 16
	}
	return c
}

type member struct {
	ctx context.Context

	mu        sync.Mutex
	done      chan struct{}
	result    Result
	resultSet bool
}

func newMember(ctx context.Context) *member {
	return &member{ctx: ctx, done: make(chan struct{})}
}

// complete delivers r to the member. Per §4.5, a member whose context was
// already cancelled is skipped on the success path (there is no longer
// anyone to receive a useful value) but still receives a failed batch's
// error, so a caller blocked in Wait on a parent-cancelled-but-not-yet-
// observed context still unblocks with the real failure instead of
// hanging.
func (m *member) complete(r Result) {
	if r.Err == nil && m.ctx.Err() != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resultSet {
		return
	}
	m.result = r
	m.resultSet = true
	close(m.done)
}

func (m *member) wait(ctx context.Context) (Result, error) {
	select {
	case <-m.done:
		m.mu.Lock()
		r := m.result
		m.mu.Unlock()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// pendingBatch is an in-progress accumulation of members sharing a Key.
// Per §4.5's invariant, a batch is either pending, being flushed, or
// fully resolved, and a request is never split across two batches.
type pendingBatch struct {
	key     Key
	oldest  time.Time
	members []*member
	flushed bool
}

// Batcher merges concurrent identical requests into a single upstream
// call (§4.5).
type Batcher struct {
	cfg Config
	sem *semaphore.Weighted

	mu      sync.Mutex
	batches map[Key]*pendingBatch

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a Batcher and starts its sweeper goroutine.
func New(cfg Config) *Batcher {
	cfg = cfg.withDefaults()
	b := &Batcher{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrentFlushes),
		batches: make(map[Key]*pendingBatch),
		stopCh:  make(chan struct{}),
	}
	b.wg.Add(1)
	go b.sweepLoop()
	return b
}

// Close stops the sweeper and waits for any in-flight flushes to finish.
// Pending, not-yet-flushed batches are abandoned; callers still blocked
// in Submit must rely on their own context to unblock.
func (b *Batcher) Close() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

// Submit attaches the caller's request to a pending batch sharing its
// Key, opening a new one if none exists or the existing one has already
// started flushing, and blocks until that batch resolves.
func (b *Batcher) Submit(ctx context.Context, model, prompt string, maxTokens int) (Result, error) {
	select {
	case <-b.stopCh:
		return Result{}, ErrClosed
	default:
	}

	key := Key{Model: model, Prompt: prompt, MaxTokens: maxTokens}

	b.mu.Lock()
	pb, ok := b.batches[key]
	if !ok || pb.flushed {
		pb = &pendingBatch{key: key, oldest: time.Now()}
		b.batches[key] = pb
	}
	m := newMember(ctx)
	pb.members = append(pb.members, m)
	b.mu.Unlock()

	return m.wait(ctx)
}

func (b *Batcher) sweepLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *Batcher) sweep() {
	now := time.Now()

	b.mu.Lock()
	var due []*pendingBatch
	for key, pb := range b.batches {
		if pb.flushed {
			continue
		}
		if now.Sub(pb.oldest) < b.cfg.MaxBatchAge {
			continue
		}
		pb.flushed = true
		due = append(due, pb)
		delete(b.batches, key)
	}
	b.mu.Unlock()

	for _, pb := range due {
		b.wg.Add(1)
		go b.flush(pb)
	}
}

func (b *Batcher) flush(pb *pendingBatch) {
	defer b.wg.Done()

	ctx := context.Background()
	if err := b.sem.Acquire(ctx, 1); err != nil {
		b.distribute(pb, Result{Err: err})
		return
	}
	defer b.sem.Release(1)

	value, err := b.cfg.Flush(ctx, pb.key)
	b.distribute(pb, Result{Value: value, Err: err})
}

func (b *Batcher) distribute(pb *pendingBatch, r Result) {
	for _, m := range pb.members {
		m.complete(r)
	}
}

// Len reports how many distinct batch keys are currently pending
// (not yet flushed). Intended for tests and observability gauges.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}
