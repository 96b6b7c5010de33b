// Package client is a small Go client for the price checker daemon's HTTP
// API, for overlays and scripts that want prices without linking the
// engine itself.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/server/api"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/version"
)

// DefaultTimeout bounds every request when the caller does not.
const DefaultTimeout = 10 * time.Second

// Client talks to a running price checker daemon.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the daemon at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetPrice resolves one item through the daemon.
func (c *Client) GetPrice(ctx context.Context, itemKey string, category pricing.Category) (*api.PriceResponse, error) {
	params := url.Values{}
	params.Set("item", itemKey)
	params.Set("category", string(category))

	var response api.PriceResponse
	if err := c.get(ctx, "/v1/price?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Sources reports the daemon's per source health and cache statistics.
func (c *Client) Sources(ctx context.Context) ([]api.SourceStatus, error) {
	var statuses []api.SourceStatus
	if err := c.get(ctx, "/v1/sources", &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Health returns nil when the daemon is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, "/health")
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, path)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	return req, nil
}
