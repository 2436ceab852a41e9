package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/playok/adminsync/internal/model"
)

const pingInterval = 30 * time.Second

// savedEvent is pushed to every open admin page after a save so that other
// tabs can refresh their form without a reload.
type savedEvent struct {
	Type      string    `json:"type"`
	AdminData model.Bag `json:"adminData"`
	Time      int64     `json:"time"`
}

// Hub manages WebSocket connections and broadcasts.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	reg     chan *wsClient
	unreg   chan *wsClient
	done    chan struct{}
	logger  *zap.Logger
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		reg:     make(chan *wsClient, 16),
		unreg:   make(chan *wsClient, 16),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run processes register/unregister events until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return nil
		case c := <-h.reg:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unreg:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastSaved tells every connected page which values were just saved.
func (h *Hub) BroadcastSaved(saved model.Bag) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(savedEvent{Type: "saved", AdminData: saved, Time: time.Now().Unix()})
	if err != nil {
		return
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// client too slow, skip
		}
	}
}

func (c *wsClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

// HandleWS handles WebSocket upgrade and manages the connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // the admin page may be served through a proxy
	})
	if err != nil {
		h.logger.Warn("ws accept failed", zap.Error(err))
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
	}

	select {
	case h.reg <- client:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go client.pingLoop(ctx)
	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump only services control frames; pages never send data.
func (c *wsClient) readPump(ctx context.Context) {
	<-c.conn.CloseRead(ctx).Done()

	select {
	case c.hub.unreg <- c:
	case <-c.hub.done:
	}
	c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *wsClient) writePump(ctx context.Context) {
	for data := range c.send {
		if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
	// send is closed by the hub on unregister or shutdown.
	c.conn.Close(websocket.StatusGoingAway, "hub closed")
}
