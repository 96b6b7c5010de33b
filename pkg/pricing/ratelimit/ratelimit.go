// Package ratelimit spaces outbound provider requests so that no source
// sees two of our requests closer together than its minimum interval.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/metrics"
)

// Stats is a snapshot of limiter activity since construction.
type Stats struct {
	TotalAcquires     int64   `json:"total_acquires"`
	TotalSleeps       int64   `json:"total_sleeps"`
	TotalSleptSeconds float64 `json:"total_slept_seconds"`
}

// Limiter enforces a per-source minimum interval between acquisitions.
// Acquire blocks without regard to context; callers that need to bound
// latency race Acquire against their own deadline and abandon the result.
type Limiter struct {
	mu              sync.Mutex
	slots           map[string]*slot
	intervals       map[string]time.Duration
	defaultInterval time.Duration

	// Counters are atomics so Stats never contends with a sleeping Acquire.
	acquires   atomic.Int64
	sleeps     atomic.Int64
	sleptNanos atomic.Int64
}

type slot struct {
	mu   sync.Mutex
	last time.Time
}

// New creates a limiter with the given default minimum interval.
func New(defaultInterval time.Duration) *Limiter {
	return &Limiter{
		slots:           make(map[string]*slot),
		intervals:       make(map[string]time.Duration),
		defaultInterval: defaultInterval,
	}
}

// SetInterval overrides the minimum interval for one source.
func (l *Limiter) SetInterval(source string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intervals[source] = interval
}

// Acquire blocks until a request for the source may proceed, then claims
// the slot. Successive claims for one source are spaced by at least the
// source's minimum interval even under concurrent callers; the first claim
// never waits. Sources never wait on each other.
func (l *Limiter) Acquire(source string) {
	s, interval := l.slot(source)

	var slept time.Duration
	for {
		s.mu.Lock()
		now := time.Now()
		if s.last.IsZero() || now.Sub(s.last) >= interval {
			s.last = now
			s.mu.Unlock()
			break
		}
		wait := interval - now.Sub(s.last)
		// Sleep outside the slot lock so other sources and Stats readers
		// are never held up, then re-check: another caller may have
		// claimed the slot while we slept.
		s.mu.Unlock()

		slept += wait
		time.Sleep(wait)
	}

	l.acquires.Add(1)
	if slept > 0 {
		l.sleeps.Add(1)
		l.sleptNanos.Add(int64(slept))
		metrics.RecordRateLimitWait(source, slept)
	}
}

// Stats returns current counters. It reads atomics only and never blocks,
// so it is safe to call from logging paths while acquisitions are in flight.
func (l *Limiter) Stats() Stats {
	return Stats{
		TotalAcquires:     l.acquires.Load(),
		TotalSleeps:       l.sleeps.Load(),
		TotalSleptSeconds: time.Duration(l.sleptNanos.Load()).Seconds(),
	}
}

func (l *Limiter) slot(source string) (*slot, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[source]
	if !ok {
		s = &slot{}
		l.slots[source] = s
	}
	interval, ok := l.intervals[source]
	if !ok {
		interval = l.defaultInterval
	}
	return s, interval
}
