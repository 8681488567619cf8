// Package realtime streams pipeline notifications to browsers over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"leadflow/internal/logging"
	"leadflow/internal/models"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Client is one websocket subscriber. LeadID 0 means "all leads".
type Client struct {
	conn   net.Conn
	leadID int64
	send   chan []byte
	once   sync.Once
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// Hub fans notifications out to connected clients. A client that cannot
// keep up is disconnected instead of slowing the others down.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "realtime" }

// Notify never blocks on a client.
func (h *Hub) Notify(_ context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("realtime: marshal notification: %w", err)
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if c.leadID != 0 && c.leadID != n.LeadID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("realtime client too slow, disconnecting", slog.String("remote", c.conn.RemoteAddr().String()))
		h.unregister(c)
	}
	return nil
}

// ServeWS upgrades the request and blocks until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, leadID int64) error {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return fmt.Errorf("realtime: upgrade: %w", err)
	}
	c := &Client{conn: conn, leadID: leadID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.logger.Debug("realtime client connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int64("lead_id", leadID))

	go h.writeLoop(c)

	// читаем только ради ping/close
	for {
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			break
		}
	}
	h.unregister(c)
	h.logger.Debug("realtime client disconnected", slog.String("remote", conn.RemoteAddr().String()))
	return nil
}

func (h *Hub) writeLoop(c *Client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := wsutil.WriteServerText(c.conn, data); err != nil {
			h.unregister(c)
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}
