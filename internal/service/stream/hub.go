package stream

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"EventEdge/internal/service/metrics"
	applogger "EventEdge/pkg/logger"
	xutil "EventEdge/pkg/util"
)

// HubConfig tunes the live feed.
type HubConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	tickers map[string]struct{} // empty means all
}

func (c *client) wants(ticker string) bool {
	if len(c.tickers) == 0 {
		return true
	}
	_, ok := c.tickers[strings.ToUpper(ticker)]
	return ok
}

// Hub fans processed decisions out to WebSocket subscribers. Slow clients
// drop messages instead of blocking the pipeline.
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader
	l        *applogger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(cfg HubConfig, l *applogger.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	metrics.Register()
	return &Hub{
		cfg:      cfg,
		l:        l,
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Message is the envelope written to subscribers.
type Message struct {
	Type   string `json:"type"`
	Ticker string `json:"ticker"`
	Data   any    `json:"data"`
}

// Handle upgrades the request. Optional ?tickers=AAPL,MSFT narrows the feed.
func (h *Hub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		if h.l != nil {
			h.l.Warn("ws upgrade failed", applogger.Error(err))
		}
		return nil
	}

	cl := &client{conn: conn, send: make(chan []byte, h.cfg.BufferSize), tickers: parseTickers(c.QueryParam("tickers"))}
	h.add(cl)
	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

func parseTickers(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range xutil.SplitUpper(raw) {
		out[t] = struct{}{}
	}
	return out
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))
	if h.l != nil {
		h.l.Info("ws client connected", applogger.Int("clients", n))
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))
}

// readLoop only drains control frames; subscribers never send data.
func (h *Hub) readLoop(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case b, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a decision to every subscriber interested in ticker.
func (h *Hub) Broadcast(ticker string, data any) {
	b, err := json.Marshal(Message{Type: "decision", Ticker: ticker, Data: data})
	if err != nil {
		if h.l != nil {
			h.l.Error("ws marshal failed", applogger.Error(err))
		}
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if !cl.wants(ticker) {
			continue
		}
		select {
		case cl.send <- b:
		default:
			metrics.StreamDropped.Inc()
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
	metrics.StreamClients.Set(0)
}
