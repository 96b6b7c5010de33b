package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
)

// PriceUpdate is one resolved price pushed to streaming clients.
type PriceUpdate struct {
	Item    string
	Result  pricing.ReconciledPrice
	Display string
}

// WebSocketServer streams resolved prices to connected clients.
type WebSocketServer struct {
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	// Client management
	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates chan PriceUpdate

	// Server control
	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn            *websocket.Conn
	send            chan []byte
	server          *WebSocketServer
	subscribedAll   bool
	subscribedItems map[string]bool
	mu              sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type  string   `json:"type"`  // "subscribe", "unsubscribe", "ping"
	Items []string `json:"items"` // Item keys to subscribe to
}

// PriceUpdateMessage is sent to clients.
type PriceUpdateMessage struct {
	Type                string   `json:"type"` // "price_update"
	Timestamp           string   `json:"timestamp"`
	Item                string   `json:"item"`
	ChaosValue          float64  `json:"chaosValue"`
	Confidence          string   `json:"confidence"`
	Label               string   `json:"label"`
	ContributingSources []string `json:"contributingSources"`
	Display             string   `json:"display,omitempty"`
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(addr string, logger *logging.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// The daemon binds to localhost; overlays and scripts connect
				// from file or app origins.
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan PriceUpdate, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the WebSocket server and blocks until Stop is called.
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.broadcastUpdates()

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", "error", err.Error())
		}
	}()

	<-s.ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops the WebSocket server.
func (s *WebSocketServer) Stop() {
	s.cancel()
}

// SendUpdate queues a resolved price for broadcast. Updates are dropped
// rather than blocking the resolving request.
func (s *WebSocketServer) SendUpdate(update PriceUpdate) {
	select {
	case s.updates <- update:
	case <-time.After(100 * time.Millisecond):
		s.logger.Warn("Update channel full, dropping price update", "item", update.Item)
	}
}

// handleWebSocket handles new WebSocket connections.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err.Error())
		return
	}

	client := &WebSocketClient{
		conn:            conn,
		send:            make(chan []byte, 256),
		server:          s,
		subscribedAll:   true, // Subscribe to all by default
		subscribedItems: make(map[string]bool),
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

// registerClient adds a client to the server.
func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

// unregisterClient removes a client from the server.
func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

// broadcastUpdates forwards queued updates to subscribed clients.
func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case update := <-s.updates:
			s.broadcast(update)
		}
	}
}

// broadcast sends one price update to every subscribed client.
func (s *WebSocketServer) broadcast(update PriceUpdate) {
	message := PriceUpdateMessage{
		Type:                "price_update",
		Timestamp:           time.Now().Format(time.RFC3339),
		Item:                update.Item,
		ChaosValue:          update.Result.ChaosValue,
		Confidence:          string(update.Result.Confidence),
		Label:               update.Result.Label,
		ContributingSources: update.Result.ContributingSources,
		Display:             update.Display,
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal price update", "error", err.Error())
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(update.Item) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping update")
			}
		}
	}
}

// writePump sends messages to the WebSocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err.Error())
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err.Error())
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err.Error())
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Items)
	case "unsubscribe":
		c.unsubscribe(msg.Items)
	case "ping":
		c.sendPong()
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe narrows the stream to specific item keys. An empty list or a
// lone "*" restores the firehose.
func (c *WebSocketClient) subscribe(items []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(items) == 0 || (len(items) == 1 && items[0] == "*") {
		c.subscribedAll = true
		c.subscribedItems = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, item := range items {
			c.subscribedItems[pricing.NormalizeItemName(item)] = true
		}
	}

	c.server.logger.Debug("Client subscribed", "items", len(items))
}

// unsubscribe removes item keys from the stream.
func (c *WebSocketClient) unsubscribe(items []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(items) == 0 || (len(items) == 1 && items[0] == "*") {
		c.subscribedAll = false
		c.subscribedItems = make(map[string]bool)
	} else {
		for _, item := range items {
			delete(c.subscribedItems, pricing.NormalizeItemName(item))
		}
	}

	c.server.logger.Debug("Client unsubscribed", "items", len(items))
}

// shouldReceive checks if the client is subscribed to this item.
func (c *WebSocketClient) shouldReceive(item string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscribedAll {
		return true
	}
	return c.subscribedItems[pricing.NormalizeItemName(item)]
}

// sendPong sends a pong response.
func (c *WebSocketClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}
