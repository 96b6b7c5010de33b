package trade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/ratelimit"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources"
)

func newTestClient(t *testing.T, baseURL string, overrides map[string]interface{}) *Client {
	t.Helper()

	config := map[string]interface{}{
		"base_url":        baseURL,
		"league":          "Standard",
		"limiter":         ratelimit.New(0),
		"max_attempts":    2,
		"initial_backoff": 1,
	}
	for k, v := range overrides {
		config[k] = v
	}

	client, err := NewClientFromConfig(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client.(*Client)
}

func serveSearch(t *testing.T, response searchResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("Failed to encode response: %v", err)
		}
	}))
}

func TestTradeClient_Initialize(t *testing.T) {
	client := newTestClient(t, "http://localhost:9999", nil)

	if client.Name() != SourceName {
		t.Errorf("Expected name %q, got %q", SourceName, client.Name())
	}
	if client.Type() != sources.TypeSearch {
		t.Errorf("Expected type %q, got %q", sources.TypeSearch, client.Type())
	}
}

func TestTradeClient_InitializeValidation(t *testing.T) {
	_, err := NewClientFromConfig(map[string]interface{}{"league": "Standard"})
	if !errors.Is(err, sources.ErrMissingBaseURL) {
		t.Errorf("Expected ErrMissingBaseURL, got %v", err)
	}

	_, err = NewClientFromConfig(map[string]interface{}{"base_url": "http://localhost:9999"})
	if !errors.Is(err, sources.ErrMissingLeague) {
		t.Errorf("Expected ErrMissingLeague, got %v", err)
	}
}

func TestTradeClient_FetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("Expected path /search, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("league"); got != "Standard" {
			t.Errorf("Expected league Standard, got %q", got)
		}
		if got := r.URL.Query().Get("item"); got != "tabula rasa" {
			t.Errorf("Expected item key in query, got %q", got)
		}
		if got := r.URL.Query().Get("category"); got != "UniqueArmour" {
			t.Errorf("Expected category UniqueArmour, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{
			Total: 57,
			Listings: []searchListing{
				{Chaos: 5.0}, {Chaos: 3.5}, {Chaos: 0}, {Chaos: 4.5},
				{Chaos: 100.0}, {Chaos: 4.0}, {Chaos: 6.5},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	quote, err := client.Fetch(context.Background(), pricing.PriceQuery{
		ItemKey:  "tabula rasa",
		Category: pricing.CategoryUniqueArmour,
	})
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if quote == nil {
		t.Fatal("Expected a quote")
	}
	// Six positive listings sorted, median of the middle pair.
	if quote.ChaosValue != 4.75 {
		t.Errorf("Expected median 4.75, got %v", quote.ChaosValue)
	}
	if quote.SampleCount != 57 {
		t.Errorf("Expected sample count 57, got %d", quote.SampleCount)
	}
	if quote.Confidence != pricing.ProviderConfidenceHigh {
		t.Errorf("Expected high confidence, got %q", quote.Confidence)
	}
	if quote.SourceID != SourceName {
		t.Errorf("Expected source %q, got %q", SourceName, quote.SourceID)
	}
	if !client.IsHealthy() {
		t.Error("Expected client to be healthy after a successful fetch")
	}
}

func TestTradeClient_LowConfidenceFlagWins(t *testing.T) {
	server := serveSearch(t, searchResponse{
		Total:         30,
		LowConfidence: true,
		Listings:      []searchListing{{Chaos: 10}, {Chaos: 12}, {Chaos: 14}},
	})
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	quote, err := client.Fetch(context.Background(), pricing.PriceQuery{
		ItemKey:  "tabula rasa",
		Category: pricing.CategoryUniqueArmour,
	})
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if quote == nil {
		t.Fatal("Expected a quote")
	}
	if quote.Confidence != pricing.ProviderConfidenceLow {
		t.Errorf("Expected the low confidence flag to override the count, got %q", quote.Confidence)
	}
}

func TestTradeClient_MedianUsesCheapestWindow(t *testing.T) {
	listings := make([]searchListing, 0, 25)
	for i := 1; i <= 25; i++ {
		listings = append(listings, searchListing{Chaos: float64(i)})
	}
	server := serveSearch(t, searchResponse{Total: 25, Listings: listings})
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	quote, err := client.Fetch(context.Background(), pricing.PriceQuery{
		ItemKey:  "tabula rasa",
		Category: pricing.CategoryUniqueArmour,
	})
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if quote == nil {
		t.Fatal("Expected a quote")
	}
	// Median of the 20 cheapest listings 1..20.
	if quote.ChaosValue != 10.5 {
		t.Errorf("Expected median 10.5, got %v", quote.ChaosValue)
	}
}

func TestTradeClient_NoListingsIsAbsence(t *testing.T) {
	server := serveSearch(t, searchResponse{Total: 0})
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	quote, err := client.Fetch(context.Background(), pricing.PriceQuery{
		ItemKey:  "headhunter",
		Category: pricing.CategoryUniqueArmour,
	})
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if quote != nil {
		t.Errorf("Expected no quote for an item without listings, got %+v", quote)
	}
	if !client.IsHealthy() {
		t.Error("An empty search result is not a source failure")
	}
}

func TestTradeClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{
			Total:    8,
			Listings: []searchListing{{Chaos: 2.5}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, map[string]interface{}{"max_attempts": 3})

	quote, err := client.Fetch(context.Background(), pricing.PriceQuery{
		ItemKey:  "tabula rasa",
		Category: pricing.CategoryUniqueArmour,
	})
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if quote == nil || quote.ChaosValue != 2.5 {
		t.Fatalf("Expected a quote once the server recovered, got %+v", quote)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestTradeClient_MalformedResponseNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("surprise, not json"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, map[string]interface{}{"max_attempts": 3})

	quote, err := client.Fetch(context.Background(), pricing.PriceQuery{
		ItemKey:  "tabula rasa",
		Category: pricing.CategoryUniqueArmour,
	})
	if err != nil {
		t.Fatalf("Fetch must absorb source failures, got error: %v", err)
	}
	if quote != nil {
		t.Errorf("Expected no quote from a malformed response, got %+v", quote)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected no retries for a malformed response, got %d attempts", got)
	}
	if client.IsHealthy() {
		t.Error("Expected client to be unhealthy after a malformed response")
	}
}
