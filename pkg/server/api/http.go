// Package api provides HTTP and WebSocket API endpoints for the price
// checker daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/config"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/metrics"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/cache"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/currency"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/resolver"
)

// Server represents the HTTP API server.
type Server struct {
	addr           string
	tls            config.TLSConfig
	service        *resolver.Service
	converter      *currency.Converter
	resolveTimeout time.Duration
	server         *http.Server
	logger         *logging.Logger
	wsServer       *WebSocketServer // Optional WebSocket server for streaming
}

// NewServer creates a new HTTP API server.
func NewServer(httpCfg config.HTTPConfig, service *resolver.Service, converter *currency.Converter, resolveTimeout time.Duration, logger *logging.Logger) *Server {
	if resolveTimeout <= 0 {
		resolveTimeout = 5 * time.Second
	}
	return &Server{
		addr:           httpCfg.Addr,
		tls:            httpCfg.TLS,
		service:        service,
		converter:      converter,
		resolveTimeout: resolveTimeout,
		logger:         logger,
	}
}

// SetWebSocketServer sets the WebSocket server for streaming updates.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// Start starts the HTTP server and blocks until it shuts down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/price", s.handlePrice)
	mux.HandleFunc("/v1/sources", s.handleSources)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr, "tls", s.tls.Enabled)

	var err error
	if s.tls.Enabled {
		err = s.server.ListenAndServeTLS(s.tls.Cert, s.tls.Key)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// PriceResponse is the /v1/price payload.
type PriceResponse struct {
	Item                string   `json:"item"`
	Category            string   `json:"category"`
	ChaosValue          float64  `json:"chaosValue"`
	Confidence          string   `json:"confidence"`
	Label               string   `json:"label"`
	ContributingSources []string `json:"contributingSources"`
	Display             string   `json:"display,omitempty"`
}

// SourceStatus is one entry of the /v1/sources payload.
type SourceStatus struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Healthy    bool         `json:"healthy"`
	LastUpdate time.Time    `json:"last_update"`
	Cache      *cache.Stats `json:"cache,omitempty"`
}

// handleHealth handles the /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePrice handles the /v1/price endpoint.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/price", strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		http.Error(w, "Method not allowed", status)
		return
	}

	query := pricing.PriceQuery{
		ItemKey:  r.URL.Query().Get("item"),
		Category: pricing.Category(r.URL.Query().Get("category")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.resolveTimeout)
	defer cancel()

	result, err := s.service.Resolve(ctx, query)
	if err != nil {
		status = http.StatusBadRequest
		http.Error(w, err.Error(), status)
		return
	}

	response := PriceResponse{
		Item:                query.ItemKey,
		Category:            string(query.Category),
		ChaosValue:          result.ChaosValue,
		Confidence:          string(result.Confidence),
		Label:               result.Label,
		ContributingSources: result.ContributingSources,
	}
	if s.converter != nil && result.Confidence != pricing.ConfidenceNone {
		response.Display = s.converter.Format(result.ChaosValue)
	}

	if s.wsServer != nil {
		s.wsServer.SendUpdate(PriceUpdate{
			Item:    query.ItemKey,
			Result:  result,
			Display: response.Display,
		})
	}

	s.sendJSON(w, response)
}

// handleSources handles the /v1/sources endpoint.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/sources", strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		http.Error(w, "Method not allowed", status)
		return
	}

	clients := s.service.Clients()
	statuses := make([]SourceStatus, 0, len(clients))
	for _, client := range clients {
		entry := SourceStatus{
			Name:       client.Name(),
			Type:       client.Type(),
			Healthy:    client.IsHealthy(),
			LastUpdate: client.LastUpdate(),
		}
		if sc, ok := client.(interface{ CacheStats() cache.Stats }); ok {
			stats := sc.CacheStats()
			entry.Cache = &stats
		}
		statuses = append(statuses, entry)
	}

	s.sendJSON(w, statuses)
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err.Error())
	}
}
