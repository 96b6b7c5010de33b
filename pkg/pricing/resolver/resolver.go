// Package resolver fans a price query out to the configured sources and
// merges their answers into one result.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/metrics"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/reconcile"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources"
)

// Service is the engine facade. It holds its source clients by injection
// so tests and alternate deployments can swap them freely.
type Service struct {
	primary    sources.Client
	secondary  sources.Client
	reconciler *reconcile.Reconciler
	logger     *logging.Logger
}

// New creates a resolution service. The secondary client may be nil for
// single source deployments; the reconciler must not be.
func New(primary, secondary sources.Client, reconciler *reconcile.Reconciler, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Service{
		primary:    primary,
		secondary:  secondary,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Resolve answers one query. Sources are queried concurrently; a slow or
// failing source never blocks the answer beyond the caller's deadline.
// When the deadline fires first, whatever quotes have settled by then are
// reconciled and the rest are treated as absent.
func (s *Service) Resolve(ctx context.Context, query pricing.PriceQuery) (pricing.ReconciledPrice, error) {
	if err := query.Validate(); err != nil {
		return pricing.ReconciledPrice{}, err
	}

	start := time.Now()
	requestID := uuid.NewString()

	// Fetches run on a detached context: an answer that arrives after the
	// caller gave up still lands in the source cache, so the next lookup
	// for the same item is instant.
	fetchCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	quotes := make([]*pricing.SourceQuote, 2)

	var wg sync.WaitGroup
	for i, client := range []sources.Client{s.primary, s.secondary} {
		if client == nil {
			continue
		}
		wg.Add(1)
		go func(i int, client sources.Client) {
			defer wg.Done()
			quote, err := client.Fetch(fetchCtx, query)
			if err != nil {
				s.logger.Warn("Source rejected query",
					"request_id", requestID, "source", client.Name(), "error", err.Error())
				return
			}
			mu.Lock()
			quotes[i] = quote
			mu.Unlock()
		}(i, client)
	}

	settled := make(chan struct{})
	go func() {
		wg.Wait()
		close(settled)
	}()

	select {
	case <-settled:
	case <-ctx.Done():
		s.logger.Warn("Resolution deadline hit, reconciling partial results",
			"request_id", requestID, "item", query.ItemKey)
	}

	mu.Lock()
	primary, secondary := quotes[0], quotes[1]
	mu.Unlock()

	result := s.reconciler.Reconcile(primary, secondary)
	metrics.RecordResolution(string(result.Confidence), time.Since(start))
	s.logger.Info("Resolved price",
		"request_id", requestID,
		"item", query.ItemKey,
		"category", string(query.Category),
		"chaos_value", result.ChaosValue,
		"confidence", string(result.Confidence),
		"label", result.Label,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// Clients returns the configured source clients in primary, secondary
// order. Nil slots are skipped.
func (s *Service) Clients() []sources.Client {
	clients := make([]sources.Client, 0, 2)
	for _, client := range []sources.Client{s.primary, s.secondary} {
		if client != nil {
			clients = append(clients, client)
		}
	}
	return clients
}

// Close shuts down the source clients.
func (s *Service) Close() {
	for _, client := range s.Clients() {
		if err := client.Close(); err != nil {
			s.logger.Warn("Failed to close source", "source", client.Name(), "error", err.Error())
		}
	}
}
