package sources

import (
	"context"
	"sync"
	"time"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/metrics"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/cache"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/ratelimit"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/retry"
)

// RawFetchFunc performs one provider fetch attempt for one query. A nil
// quote means the provider has no data. Implementations call Acquire
// immediately before each network request so that retried attempts are
// spaced by the limiter too; attempts that can answer without touching the
// network skip the limiter entirely.
type RawFetchFunc func(ctx context.Context) (*pricing.SourceQuote, error)

// BaseClient carries the pipeline every source client shares: response
// cache, rate limiter, retry policy and health bookkeeping. Concrete
// providers embed it and route their Fetch through Do.
type BaseClient struct {
	name       string
	clientType string
	logger     *logging.Logger

	limiter *ratelimit.Limiter
	cache   *cache.Cache
	policy  retry.Policy

	healthMu sync.RWMutex
	healthy  bool

	updateMu   sync.RWMutex
	lastUpdate time.Time
}

// NewBaseClient wires the shared pipeline for a named source.
func NewBaseClient(name, clientType string, limiter *ratelimit.Limiter, quoteCache *cache.Cache, policy retry.Policy, logger *logging.Logger) *BaseClient {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &BaseClient{
		name:       name,
		clientType: clientType,
		logger:     logger,
		limiter:    limiter,
		cache:      quoteCache,
		policy:     policy,
	}
}

// Do answers a query through the shared pipeline. The cache answers first,
// including cached absence; on a miss, concurrent callers for the same key
// coalesce onto one fetch chain run under the retry policy. Provider
// failures are absorbed at this boundary: the exhausted error is logged
// and counted once, and the caller sees no data.
func (b *BaseClient) Do(ctx context.Context, query pricing.PriceQuery, raw RawFetchFunc) *pricing.SourceQuote {
	quote, err := b.cache.Fetch(ctx, query.ItemKey, func(fctx context.Context) (*pricing.SourceQuote, error) {
		start := time.Now()
		q, ferr := retry.Execute(fctx, b.policy, b.name, b.logger, raw)
		metrics.RecordSourceFetchDuration(b.name, time.Since(start))
		if ferr != nil {
			return nil, ferr
		}

		outcome := "fetched"
		if q == nil {
			outcome = "absent"
		}
		metrics.RecordSourceFetch(b.name, outcome)
		b.SetHealthy(true)
		b.markUpdated()
		return q, nil
	})
	if err != nil {
		b.SetHealthy(false)
		metrics.RecordSourceFetch(b.name, "error")
		b.logger.Warn("source fetch failed",
			"source", b.name,
			"item", query.ItemKey,
			"class", retry.Classify(err).String(),
			"error", err.Error(),
		)
		return nil
	}
	return quote
}

// Acquire claims the source's limiter slot, blocking until the minimum
// request interval has passed.
func (b *BaseClient) Acquire() {
	b.limiter.Acquire(b.name)
}

// Name returns the source identifier.
func (b *BaseClient) Name() string {
	return b.name
}

// Type returns the provider shape.
func (b *BaseClient) Type() string {
	return b.clientType
}

// IsHealthy reports whether the most recent provider contact succeeded.
func (b *BaseClient) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthy
}

// SetHealthy updates the health state and the exported gauge.
func (b *BaseClient) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	b.healthy = healthy
	b.healthMu.Unlock()
	metrics.RecordSourceHealth(b.name, b.clientType, healthy)
}

// LastUpdate returns the time of the last successful provider contact.
func (b *BaseClient) LastUpdate() time.Time {
	b.updateMu.RLock()
	defer b.updateMu.RUnlock()
	return b.lastUpdate
}

func (b *BaseClient) markUpdated() {
	b.updateMu.Lock()
	b.lastUpdate = time.Now()
	b.updateMu.Unlock()
}

// CacheStats exposes the response cache counters for the health surface.
func (b *BaseClient) CacheStats() cache.Stats {
	return b.cache.Stats()
}

// Logger returns the client logger for embedding providers.
func (b *BaseClient) Logger() *logging.Logger {
	return b.logger
}

// Close releases nothing at the base layer.
func (b *BaseClient) Close() error {
	return nil
}
