package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
)

func dialTestSocket(t *testing.T) (*WebSocketServer, *websocket.Conn) {
	t.Helper()

	s := NewWebSocketServer(":0", logging.NewNoopLogger())
	go s.broadcastUpdates()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	ts := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() {
		_ = conn.Close()
		s.Stop()
		ts.Close()
	})

	// Give the handler a moment to register the client.
	time.Sleep(50 * time.Millisecond)
	return s, conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) PriceUpdateMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var message PriceUpdateMessage
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestWebSocketBroadcastsByDefault(t *testing.T) {
	s, conn := dialTestSocket(t)

	s.SendUpdate(PriceUpdate{
		Item: "tabula rasa",
		Result: pricing.ReconciledPrice{
			ChaosValue:          15.2,
			Confidence:          pricing.ConfidenceHigh,
			Label:               "primary validated by secondary",
			ContributingSources: []string{"ninja", "trade"},
		},
		Display: "15.2c",
	})

	message := readUpdate(t, conn)
	assert.Equal(t, "price_update", message.Type)
	assert.Equal(t, "tabula rasa", message.Item)
	assert.Equal(t, 15.2, message.ChaosValue)
	assert.Equal(t, "high", message.Confidence)
	assert.Equal(t, []string{"ninja", "trade"}, message.ContributingSources)
	assert.Equal(t, "15.2c", message.Display)
	assert.NotEmpty(t, message.Timestamp)
}

func TestWebSocketFiltersBySubscription(t *testing.T) {
	s, conn := dialTestSocket(t)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type:  "subscribe",
		Items: []string{"Tabula Rasa"},
	}))
	// Subscription is applied by the read pump; give it a moment.
	time.Sleep(100 * time.Millisecond)

	s.SendUpdate(PriceUpdate{Item: "headhunter", Result: pricing.ReconciledPrice{ChaosValue: 9000}})
	s.SendUpdate(PriceUpdate{Item: "tabula rasa", Result: pricing.ReconciledPrice{ChaosValue: 15.2}})

	message := readUpdate(t, conn)
	assert.Equal(t, "tabula rasa", message.Item, "the unsubscribed item must be filtered out")
}

func TestWebSocketPingPong(t *testing.T) {
	_, conn := dialTestSocket(t)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
}
