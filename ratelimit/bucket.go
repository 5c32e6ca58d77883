package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures a DualBucket.
type Config struct {
	// PerSecondRate is the base (ceiling) per-second refill rate, in
	// requests/second. Default: 1.
	PerSecondRate float64

	// PerSecondBurst is the per-second bucket's capacity. Default: 5.
	PerSecondBurst float64

	// PerMinuteRate is the base (ceiling) per-minute refill rate, in
	// requests/minute. Default: 50.
	PerMinuteRate float64

	// PerMinuteBurst is the per-minute bucket's capacity. Default: 100.
	PerMinuteBurst float64

	// PollInterval is how long TryConsume sleeps between admission checks
	// while waiting for both windows to have a token. Default: 50ms.
	PollInterval time.Duration

	// HeaderFreshness bounds how long a header snapshot is honored for
	// adaptive tuning before it is treated as stale. Default: 1 minute.
	HeaderFreshness time.Duration
}

func (c Config) withDefaults() Config {
	if c.PerSecondRate <= 0 {
		c.PerSecondRate = 1
	}
	if c.PerSecondBurst <= 0 {
		c.PerSecondBurst = 5
	}
	if c.PerMinuteRate <= 0 {
		c.PerMinuteRate = 50
	}
	if c.PerMinuteBurst <= 0 {
		c.PerMinuteBurst = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.HeaderFreshness <= 0 {
		c.HeaderFreshness = time.Minute
	}
	return c
}

// Snapshot is a point-in-time view of a DualBucket, returned by Snapshot().
type Snapshot struct {
	PerSecondTokens float64
	PerMinuteTokens float64
	PerSecondRate   float64 // current refill rate (may be adaptively tuned)
	PerMinuteRate   float64

	HasHeaderSnapshot bool
	Header            HeaderSnapshot
	HeaderAt          time.Time
}

// DualBucket is a token bucket admitting a call only when both a
// per-second and a per-minute counter are simultaneously available,
// adapting its refill rates to the upstream's own advertised quota.
//
// DualBucket generalizes resilience.RateLimiter's single-window,
// lazily-refilled design to two independent windows that must both clear
// before a consumption is granted.
type DualBucket struct {
	cfg Config

	mu              sync.Mutex
	perSecondTokens float64
	perMinuteTokens float64
	perSecondRate   float64
	perMinuteRate   float64
	lastRefill      time.Time

	hasHeader bool
	header    HeaderSnapshot
	headerAt  time.Time
}

// NewDualBucket creates a DualBucket starting at full capacity.
func NewDualBucket(cfg Config) *DualBucket {
	cfg = cfg.withDefaults()
	now := time.Now()
	return &DualBucket{
		cfg:             cfg,
		perSecondTokens: cfg.PerSecondBurst,
		perMinuteTokens: cfg.PerMinuteBurst,
		perSecondRate:   cfg.PerSecondRate,
		perMinuteRate:   cfg.PerMinuteRate,
		lastRefill:      now,
	}
}

// TryConsume blocks until one token is available in both windows, or ctx is
// done. A successful return always decremented both counters together.
func (b *DualBucket) TryConsume(ctx context.Context) error {
	for {
		if b.tryOnce() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ErrWaitCancelled
		case <-time.After(b.cfg.PollInterval):
		}
	}
}

func (b *DualBucket) tryOnce() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.perSecondTokens >= 1 && b.perMinuteTokens >= 1 {
		b.perSecondTokens--
		b.perMinuteTokens--
		return true
	}
	return false
}

// refillLocked adds tokens for elapsed wall-clock time and, while a fresh
// header snapshot exists, adapts the refill rates. Must be called with b.mu
// held.
func (b *DualBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now

	b.perSecondTokens += elapsed.Seconds() * b.perSecondRate
	if b.perSecondTokens > b.cfg.PerSecondBurst {
		b.perSecondTokens = b.cfg.PerSecondBurst
	}

	b.perMinuteTokens += elapsed.Seconds() * (b.perMinuteRate / 60)
	if b.perMinuteTokens > b.cfg.PerMinuteBurst {
		b.perMinuteTokens = b.cfg.PerMinuteBurst
	}

	b.adaptLocked(now)
}

// adaptLocked applies the §4.1 adaptive-tuning rule while the most recent
// header snapshot is still fresh. Both remaining-percentages are measured
// against PerMinuteBurst: the upstream's remaining-requests/remaining-tokens
// counters are scoped to its own per-minute window, and this bucket tracks
// no independent token capacity of its own (see DESIGN.md).
func (b *DualBucket) adaptLocked(now time.Time) {
	if !b.hasHeader || now.Sub(b.headerAt) >= b.cfg.HeaderFreshness {
		return
	}

	reqPct := float64(b.header.RemainingRequests) / b.cfg.PerMinuteBurst
	tokPct := float64(b.header.RemainingTokens) / b.cfg.PerMinuteBurst

	switch {
	case reqPct < 0.2 || tokPct < 0.2:
		b.perSecondRate *= 0.8
		b.perMinuteRate *= 0.8
	case reqPct > 0.5 && tokPct > 0.5:
		b.perSecondRate = minF(b.perSecondRate*1.1, b.cfg.PerSecondRate)
		b.perMinuteRate = minF(b.perMinuteRate*1.1, b.cfg.PerMinuteRate)
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// UpdateFromHeaders records a newly observed upstream rate-limit header
// snapshot for adaptive tuning.
func (b *DualBucket) UpdateFromHeaders(h HeaderSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.header = h
	b.headerAt = time.Now()
	b.hasHeader = true
}

// PrecallDelay computes the §4.6 pre-call adaptive delay: when either
// window is down to its last couple of tokens, wait long enough that the
// next call is unlikely to be refused outright.
// remaining < 0.01 is floored to 0.01 before dividing, so a fully drained
// window yields a long but finite wait instead of +Inf.
func (s Snapshot) PrecallDelay() time.Duration {
	if s.PerSecondTokens >= 2 && s.PerMinuteTokens >= 10 {
		return 0
	}

	perSecond := s.PerSecondTokens
	if perSecond < 0.01 {
		perSecond = 0.01
	}
	perMinute := s.PerMinuteTokens
	if perMinute < 0.01 {
		perMinute = 0.01
	}

	bySecond := time.Duration(1000/perSecond) * time.Millisecond
	byMinute := time.Duration(60000/perMinute) * time.Millisecond
	if bySecond > byMinute {
		return bySecond
	}
	return byMinute
}

// Snapshot returns the bucket's current state.
func (b *DualBucket) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()

	return Snapshot{
		PerSecondTokens:   b.perSecondTokens,
		PerMinuteTokens:   b.perMinuteTokens,
		PerSecondRate:     b.perSecondRate,
		PerMinuteRate:     b.perMinuteRate,
		HasHeaderSnapshot: b.hasHeader,
		Header:            b.header,
		HeaderAt:          b.headerAt,
	}
}
