package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(HubConfig{PingInterval: time.Second}, nil)
	e := echo.New()
	e.GET("/ws/decisions", hub.Handle)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/decisions"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("NVDA", map[string]any{"signal": "BUY"})

	m := readMessage(t, conn)
	assert.Equal(t, "decision", m.Type)
	assert.Equal(t, "NVDA", m.Ticker)
	assert.Equal(t, map[string]any{"signal": "BUY"}, m.Data)
}

func TestHubTickerFilter(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?tickers=amd,%20tsla")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("NVDA", "skip")
	hub.Broadcast("AMD", "keep")

	m := readMessage(t, conn)
	assert.Equal(t, "AMD", m.Ticker)
	assert.Equal(t, "keep", m.Data)
}

func TestHubRemovesClosedClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestParseTickers(t *testing.T) {
	assert.Empty(t, parseTickers(""))
	assert.Equal(t, map[string]struct{}{"AAPL": {}, "MSFT": {}}, parseTickers(" aapl,,MSFT "))
}
