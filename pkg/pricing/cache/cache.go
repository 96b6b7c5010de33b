// Package cache provides the per-source response cache: TTL expiry,
// eviction by least recent access and single-flight fetch coalescing.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/metrics"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
)

const (
	// DefaultTTL bounds how long a quote is served without a refetch.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries bounds the entry count of a source cache.
	DefaultMaxEntries = 512
)

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Size      int     `json:"size"`
	HitRatio  float64 `json:"hit_ratio"`
	FillRatio float64 `json:"fill_ratio"`
}

// FetchFunc loads a quote when the cache cannot answer. A nil quote with a
// nil error means the provider confirmed it has no data for the key.
type FetchFunc func(ctx context.Context) (*pricing.SourceQuote, error)

// Cache stores quotes per item key with TTL expiry and evicts the least
// recently accessed entry once the size bound is exceeded. A nil quote is a
// valid value: confirmed absence is cached like any other answer.
type Cache struct {
	name    string
	ttl     time.Duration
	maxSize int
	logger  *logging.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List

	flight singleflight.Group

	// Counters are atomics so Stats can run while the mutex is held,
	// including from logging inside this package's own mutation paths.
	hits   atomic.Int64
	misses atomic.Int64
	size   atomic.Int64
}

type entry struct {
	key       string
	quote     *pricing.SourceQuote
	expiresAt time.Time
}

// New creates a cache for one source. Non-positive ttl or maxSize fall back
// to the package defaults.
func New(name string, ttl time.Duration, maxSize int, logger *logging.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Cache{
		name:    name,
		ttl:     ttl,
		maxSize: maxSize,
		logger:  logger,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value for key. Expiry is checked on read: an
// expired entry is removed and reported as a miss, never returned. A hit
// refreshes the entry's position in the eviction order.
func (c *Cache) Get(key string) (*pricing.SourceQuote, bool) {
	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		metrics.RecordCacheMiss(c.name)
		return nil, false
	}

	ent := el.Value.(*entry)
	if !time.Now().Before(ent.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		c.size.Store(int64(len(c.entries)))
		c.mu.Unlock()
		c.misses.Add(1)
		metrics.RecordCacheMiss(c.name)
		metrics.RecordCacheSize(c.name, int(c.size.Load()))
		return nil, false
	}

	c.order.MoveToFront(el)
	quote := ent.quote
	c.mu.Unlock()

	c.hits.Add(1)
	metrics.RecordCacheHit(c.name)
	return quote, true
}

// Set stores a value under key with the cache TTL, evicting the least
// recently accessed entries if the size bound is exceeded.
func (c *Cache) Set(key string, quote *pricing.SourceQuote) {
	c.mu.Lock()
	evicted := c.store(key, quote)
	size := len(c.entries)
	c.mu.Unlock()

	c.reportEvictions(evicted, size)
}

// Fetch returns the value for key, loading it at most once across
// concurrent callers. The fast path is a plain Get. On a miss, callers for
// the same key coalesce onto a single fn invocation; fn runs outside any
// cache lock. The winner publishes with a re-check, so a value that landed
// while fn ran is kept and the fresh result discarded. Errors from fn are
// returned to every coalesced caller and are never cached.
func (c *Cache) Fetch(ctx context.Context, key string, fn FetchFunc) (*pricing.SourceQuote, error) {
	if quote, ok := c.Get(key); ok {
		return quote, nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// A previous flight may have published while this caller queued.
		if quote, ok := c.peek(key); ok {
			return quote, nil
		}

		quote, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return c.publish(key, quote), nil
	})
	if err != nil {
		return nil, err
	}

	quote, _ := v.(*pricing.SourceQuote)
	return quote, nil
}

// Stats returns current counters. It reads atomics only and takes no lock,
// so it is safe to call from logging paths that run while the cache is mid
// mutation. Hits and misses count Get lookups; Size is the live entry
// count; ratios are zero until there is data to divide.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	size := c.size.Load()

	var hitRatio float64
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}
	var fillRatio float64
	if c.maxSize > 0 {
		fillRatio = float64(size) / float64(c.maxSize)
	}

	return Stats{
		Hits:      hits,
		Misses:    misses,
		Size:      int(size),
		HitRatio:  hitRatio,
		FillRatio: fillRatio,
	}
}

// peek is Get without counter updates, used for the in-flight re-check.
func (c *Cache) peek(key string) (*pricing.SourceQuote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*entry)
	if !time.Now().Before(ent.expiresAt) {
		return nil, false
	}
	c.order.MoveToFront(el)
	return ent.quote, true
}

// publish stores the fetched value unless a live entry appeared during the
// fetch, in which case the existing value wins.
func (c *Cache) publish(key string, quote *pricing.SourceQuote) *pricing.SourceQuote {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry)
		if time.Now().Before(ent.expiresAt) {
			existing := ent.quote
			c.mu.Unlock()
			return existing
		}
	}
	evicted := c.store(key, quote)
	size := len(c.entries)
	c.mu.Unlock()

	c.reportEvictions(evicted, size)
	return quote
}

// store inserts or refreshes an entry and trims over-capacity entries from
// the cold end. Callers hold c.mu.
func (c *Cache) store(key string, quote *pricing.SourceQuote) []string {
	now := time.Now()
	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry)
		ent.quote = quote
		ent.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return nil
	}

	el := c.order.PushFront(&entry{key: key, quote: quote, expiresAt: now.Add(c.ttl)})
	c.entries[key] = el

	var evicted []string
	for len(c.entries) > c.maxSize {
		back := c.order.Back()
		if back == nil {
			break
		}
		ent := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.entries, ent.key)
		evicted = append(evicted, ent.key)
	}
	c.size.Store(int64(len(c.entries)))
	return evicted
}

// reportEvictions runs outside the critical section. Pulling a stats
// snapshot here is safe because Stats never touches the mutex.
func (c *Cache) reportEvictions(evicted []string, size int) {
	metrics.RecordCacheSize(c.name, size)
	if len(evicted) == 0 {
		return
	}
	for range evicted {
		metrics.RecordCacheEviction(c.name)
	}
	stats := c.Stats()
	c.logger.Debug("evicted least recently accessed entries",
		"cache", c.name,
		"evicted", evicted,
		"size", stats.Size,
		"hit_ratio", stats.HitRatio,
		"fill_ratio", stats.FillRatio,
	)
}
