// Package ninja implements the poe.ninja bulk table provider. Whole
// category tables are downloaded on a refresh interval and individual
// queries are answered from the in-memory table.
package ninja

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/cache"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/retry"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/version"
)

// SourceName is the identifier ninja quotes carry.
const SourceName = "ninja"

// DefaultBaseURL is the public poe.ninja data API.
const DefaultBaseURL = "https://poe.ninja/api/data"

// DefaultTableTTL is how long a downloaded category table stays fresh.
const DefaultTableTTL = 30 * time.Minute

// Client serves quotes from poe.ninja category tables.
type Client struct {
	*sources.BaseClient

	baseURL  string
	league   string
	tableTTL time.Duration
	client   *http.Client

	tablesMu sync.Mutex
	tables   map[pricing.Category]*table

	refreshFlight singleflight.Group
}

type table struct {
	lines     map[string]*pricing.SourceQuote
	fetchedAt time.Time
}

type currencyOverviewResponse struct {
	Lines []currencyLine `json:"lines"`
}

type currencyLine struct {
	CurrencyTypeName string  `json:"currencyTypeName"`
	ChaosEquivalent  float64 `json:"chaosEquivalent"`
	Receive          *struct {
		Count int `json:"count"`
	} `json:"receive"`
}

type itemOverviewResponse struct {
	Lines []itemLine `json:"lines"`
}

type itemLine struct {
	Name         string  `json:"name"`
	BaseType     string  `json:"baseType"`
	Links        int     `json:"links"`
	ChaosValue   float64 `json:"chaosValue"`
	ListingCount int     `json:"listingCount"`
	Corrupted    bool    `json:"corrupted"`
}

// NewClientFromConfig creates a ninja client from config.
func NewClientFromConfig(config map[string]interface{}) (sources.Client, error) {
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
		sources.GetInt(config, "cache_max_entries", 4096),
		logger,
	)

	c := &Client{
		BaseClient: sources.NewBaseClient(name, sources.TypeBulk,
			sources.GetLimiterFromConfig(config), quoteCache, policy, logger),
		baseURL:  sources.GetString(config, "base_url", DefaultBaseURL),
		league:   league,
		tableTTL: sources.GetDuration(config, "table_ttl", DefaultTableTTL),
		client: &http.Client{
			Timeout: timeout,
		},
		tables: make(map[pricing.Category]*table),
	}

	c.Logger().Info("Initializing ninja source", "league", league, "base_url", c.baseURL)
	return c, nil
}

// Fetch answers a query from the category table, refreshing the table
// first when it is stale. Between refreshes a lookup touches no network.
func (c *Client) Fetch(ctx context.Context, query pricing.PriceQuery) (*pricing.SourceQuote, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	return c.Do(ctx, query, func(fctx context.Context) (*pricing.SourceQuote, error) {
		return c.lookup(fctx, query)
	}), nil
}

func (c *Client) lookup(ctx context.Context, query pricing.PriceQuery) (*pricing.SourceQuote, error) {
	t, err := c.freshTable(ctx, query.Category)
	if err != nil {
		return nil, err
	}

	if quote, ok := t.lines[query.ItemKey]; ok {
		return quote, nil
	}
	return nil, nil
}

// freshTable returns the category table, downloading it when missing or
// stale. Concurrent refreshes of one category coalesce onto a single
// download.
func (c *Client) freshTable(ctx context.Context, category pricing.Category) (*table, error) {
	if t, ok := c.cachedTable(category); ok {
		return t, nil
	}

	v, err, _ := c.refreshFlight.Do(string(category), func() (interface{}, error) {
		// A coalesced caller may queue behind a refresh that just finished.
		if t, ok := c.cachedTable(category); ok {
			return t, nil
		}

		fresh, err := c.fetchTable(ctx, category)
		if err != nil {
			return nil, err
		}

		c.tablesMu.Lock()
		c.tables[category] = fresh
		c.tablesMu.Unlock()

		c.Logger().Debug("Refreshed category table",
			"source", c.Name(), "category", string(category), "lines", len(fresh.lines))
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*table), nil
}

func (c *Client) cachedTable(category pricing.Category) (*table, bool) {
	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()

	t, ok := c.tables[category]
	if !ok || time.Since(t.fetchedAt) >= c.tableTTL {
		return nil, false
	}
	return t, true
}

// fetchTable downloads and indexes one category table.
func (c *Client) fetchTable(ctx context.Context, category pricing.Category) (*table, error) {
	c.Acquire()

	endpoint := "itemoverview"
	if isCurrencyTable(category) {
		endpoint = "currencyoverview"
	}

	params := url.Values{}
	params.Set("league", c.league)
	params.Set("type", string(category))
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("failed to fetch table: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := retry.FromStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	fetchedAt := time.Now()
	if isCurrencyTable(category) {
		var data currencyOverviewResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, retry.Malformed(fmt.Errorf("failed to decode response: %w", err))
		}
		if len(data.Lines) == 0 {
			return nil, retry.Transient(fmt.Errorf("%w: category %s", sources.ErrEmptyTable, category))
		}
		return c.indexCurrencyLines(data.Lines, fetchedAt), nil
	}

	var data itemOverviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, retry.Malformed(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(data.Lines) == 0 {
		return nil, retry.Transient(fmt.Errorf("%w: category %s", sources.ErrEmptyTable, category))
	}
	return c.indexItemLines(category, data.Lines, fetchedAt), nil
}

// indexCurrencyLines builds the lookup index for a currency style table.
// Each line is reachable by its canonical key and by its bare name.
func (c *Client) indexCurrencyLines(lines []currencyLine, fetchedAt time.Time) *table {
	t := &table{lines: make(map[string]*pricing.SourceQuote, len(lines)*2), fetchedAt: fetchedAt}

	for _, line := range lines {
		if line.CurrencyTypeName == "" || line.ChaosEquivalent <= 0 {
			continue
		}

		count := 0
		if line.Receive != nil {
			count = line.Receive.Count
		}
		quote := &pricing.SourceQuote{
			SourceID:    c.Name(),
			ChaosValue:  line.ChaosEquivalent,
			SampleCount: count,
			Confidence:  sources.ConfidenceFromListings(count),
			FetchedAt:   fetchedAt,
		}

		full := pricing.BuildItemKey(pricing.ItemFields{Name: line.CurrencyTypeName, Rarity: "Currency"})
		t.add(full, quote)
		t.add(pricing.NormalizeItemName(line.CurrencyTypeName), quote)
	}
	return t
}

// indexItemLines builds the lookup index for an item style table. Every
// line is reachable by its full canonical key; plain lines, neither linked
// nor corrupted, are additionally reachable by a reduced key and by bare
// name so that an unqualified query never lands on a six-link price.
// First line wins on collisions.
func (c *Client) indexItemLines(category pricing.Category, lines []itemLine, fetchedAt time.Time) *table {
	t := &table{lines: make(map[string]*pricing.SourceQuote, len(lines)*3), fetchedAt: fetchedAt}
	rarity := rarityForCategory(category)

	for _, line := range lines {
		if line.ChaosValue <= 0 || (line.Name == "" && line.BaseType == "") {
			continue
		}

		quote := &pricing.SourceQuote{
			SourceID:    c.Name(),
			ChaosValue:  line.ChaosValue,
			SampleCount: line.ListingCount,
			Confidence:  sources.ConfidenceFromListings(line.ListingCount),
			FetchedAt:   fetchedAt,
		}

		full := pricing.BuildItemKey(pricing.ItemFields{
			Name:      line.Name,
			BaseType:  line.BaseType,
			Rarity:    rarity,
			Links:     line.Links,
			Corrupted: line.Corrupted,
		})
		t.add(full, quote)

		if line.Links < 5 && !line.Corrupted {
			reduced := pricing.BuildItemKey(pricing.ItemFields{
				Name:     line.Name,
				BaseType: line.BaseType,
				Rarity:   rarity,
			})
			t.add(reduced, quote)

			if line.Name != "" {
				t.add(pricing.NormalizeItemName(line.Name), quote)
			}
		}
	}
	return t
}

func (t *table) add(key string, quote *pricing.SourceQuote) {
	if key == "" {
		return
	}
	if _, exists := t.lines[key]; exists {
		return
	}
	t.lines[key] = quote
}

func isCurrencyTable(category pricing.Category) bool {
	return category == pricing.CategoryCurrency || category == pricing.CategoryFragment
}

func rarityForCategory(category pricing.Category) string {
	switch category {
	case pricing.CategoryEssence, pricing.CategoryFossil:
		return "Currency"
	case pricing.CategoryDivinationCard:
		return "Divination Card"
	case pricing.CategorySkillGem:
		return "Gem"
	case pricing.CategoryUniqueWeapon, pricing.CategoryUniqueArmour,
		pricing.CategoryUniqueAccessory, pricing.CategoryUniqueFlask,
		pricing.CategoryUniqueJewel, pricing.CategoryUniqueMap:
		return "Unique"
	default:
		return ""
	}
}
