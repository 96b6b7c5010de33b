// Package trade implements the per-item search provider. Every query runs
// one search against the trade relay and condenses the returned listings
// into a single quote.
package trade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/cache"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/retry"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/version"
)

// SourceName is the identifier trade quotes carry.
const SourceName = "trade"

// SampleWindow is how many of the cheapest listings feed the price. The
// median of the window resists single undercut or troll listings.
const SampleWindow = 20

// Client prices items through per-item searches.
type Client struct {
	*sources.BaseClient

	baseURL string
	league  string
	client  *http.Client
}

type searchResponse struct {
	Total         int             `json:"total"`
	LowConfidence bool            `json:"lowConfidence"`
	Listings      []searchListing `json:"listings"`
}

type searchListing struct {
	Chaos float64 `json:"chaos"`
}

// NewClientFromConfig creates a trade client from config.
func NewClientFromConfig(config map[string]interface{}) (sources.Client, error) {
	baseURL := sources.GetString(config, "base_url", "")
	if baseURL == "" {
		return nil, fmt.Errorf("%w", sources.ErrMissingBaseURL)
	}
	league := sources.GetString(config, "league", "")
	if league == "" {
		return nil, fmt.Errorf("%w", sources.ErrMissingLeague)
	}

	logger := sources.GetLoggerFromConfig(config)
	name := sources.GetString(config, "name", SourceName)
	timeout := sources.GetDuration(config, "timeout", 10*time.Second)

	policy := retry.Policy{
		MaxAttempts:    sources.GetInt(config, "max_attempts", retry.DefaultMaxAttempts),
		InitialBackoff: sources.GetDuration(config, "initial_backoff", retry.DefaultInitialBackoff),
		MaxSleep:       sources.GetDuration(config, "max_sleep", retry.DefaultMaxSleep),
	}

	quoteCache := cache.New(name,
		sources.GetDuration(config, "cache_ttl", 10*time.Minute),
		sources.GetInt(config, "cache_max_entries", 2048),
		logger,
	)

	c := &Client{
		BaseClient: sources.NewBaseClient(name, sources.TypeSearch,
			sources.GetLimiterFromConfig(config), quoteCache, policy, logger),
		baseURL: baseURL,
		league:  league,
		client: &http.Client{
			Timeout: timeout,
		},
	}

	c.Logger().Info("Initializing trade source", "league", league, "base_url", baseURL)
	return c, nil
}

// Fetch answers a query with one rate-limited search per cache miss.
func (c *Client) Fetch(ctx context.Context, query pricing.PriceQuery) (*pricing.SourceQuote, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	return c.Do(ctx, query, func(fctx context.Context) (*pricing.SourceQuote, error) {
		return c.search(fctx, query)
	}), nil
}

func (c *Client) search(ctx context.Context, query pricing.PriceQuery) (*pricing.SourceQuote, error) {
	c.Acquire()

	params := url.Values{}
	params.Set("league", c.league)
	params.Set("item", query.ItemKey)
	params.Set("category", string(query.Category))
	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("failed to search: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := retry.FromStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, retry.Malformed(fmt.Errorf("failed to decode response: %w", err))
	}

	// No listings is the provider's way of saying it has never seen the
	// item; absence, not an error.
	if data.Total <= 0 || len(data.Listings) == 0 {
		return nil, nil
	}

	price, ok := representativePrice(data.Listings)
	if !ok {
		return nil, retry.Malformed(fmt.Errorf("%w: no usable listing prices", sources.ErrInvalidResponse))
	}

	confidence := sources.ConfidenceFromListings(data.Total)
	if data.LowConfidence {
		confidence = pricing.ProviderConfidenceLow
	}

	return &pricing.SourceQuote{
		SourceID:    c.Name(),
		ChaosValue:  price,
		SampleCount: data.Total,
		Confidence:  confidence,
		FetchedAt:   time.Now(),
	}, nil
}

// representativePrice condenses listings into one value: the median of the
// cheapest SampleWindow listings with non-positive prices dropped.
func representativePrice(listings []searchListing) (float64, bool) {
	values := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.Chaos > 0 {
			values = append(values, listing.Chaos)
		}
	}
	if len(values) == 0 {
		return 0, false
	}

	sort.Float64s(values)
	if len(values) > SampleWindow {
		values = values[:SampleWindow]
	}

	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], true
	}
	return (values[mid-1] + values[mid]) / 2, true
}
