// Package sources provides price source clients and the shared pipeline
// of caching, rate limiting and retries around raw provider fetches.
package sources

import (
	"context"
	"time"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
)

// Provider shapes.
const (
	// TypeBulk marks table providers that refresh whole categories at once.
	TypeBulk = "bulk"
	// TypeSearch marks providers queried once per item.
	TypeSearch = "search"
)

// Client is one priced data source. Fetch returns the source's quote for a
// query; a nil quote with a nil error means the source has no data for the
// item, a normal outcome for niche or worthless items.
type Client interface {
	Fetch(ctx context.Context, query pricing.PriceQuery) (*pricing.SourceQuote, error)

	// Name returns the source identifier used in quotes, logs and metrics.
	Name() string
	// Type returns the provider shape, TypeBulk or TypeSearch.
	Type() string
	// IsHealthy reports whether the most recent provider contact succeeded.
	IsHealthy() bool
	// LastUpdate returns the time of the last successful provider contact.
	LastUpdate() time.Time
	// Close releases provider resources.
	Close() error
}

// Factory creates a source client from its configuration map.
type Factory func(config map[string]interface{}) (Client, error)
