package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
	"github.com/veganlens/veganlens-core/internal/infrastructure/logging"
)

// wsSendBufferSize is the per-client outbound message buffer. A client that
// falls this far behind is disconnected rather than allowed to stall the hub.
const wsSendBufferSize = 256

// wsWriteTimeout bounds a single write to a client.
const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope for all WebSocket traffic in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub manages WebSocket clients and fans event broadcasts out to them.
//
// Clients subscribe to channels ("camera.mode_changed", "camera.error", or
// the wildcard "camera.*") and only receive broadcasts for channels they
// subscribed to.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan WSMessage

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates a WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan WSMessage, wsSendBufferSize),
		clients:    make(map[*WSClient]struct{}),
	}
}

// Run processes register, unregister, and broadcast requests until the
// context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client connected",
				"subject", client.subject,
				"remote", client.conn.RemoteAddr().String(),
				"clients", count,
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client disconnected",
				"subject", client.subject,
				"clients", count,
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.subscribedTo(msg.Channel) {
					client.trySend(msg)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for delivery to all subscribed clients. The
// payload is marshalled once, not per client.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshaling broadcast payload", "channel", channel, "error", err)
		return
	}

	msg := WSMessage{
		Type:      "event",
		Channel:   channel,
		Payload:   data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event", "channel", channel)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	subject string

	mu       sync.RWMutex
	channels map[string]struct{}
}

// subscribedTo reports whether the client wants messages on the channel.
// "camera.*" matches every camera channel.
func (c *WSClient) subscribedTo(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.channels[channel]; ok {
		return true
	}
	_, ok := c.channels["camera.*"]
	return ok
}

// trySend queues a message without blocking the hub. Sending on a closed
// channel is recovered; the read pump tears the client down on its own.
func (c *WSClient) trySend(msg WSMessage) {
	defer func() {
		//nolint:errcheck // Racing a concurrent unregister is tolerated
		recover()
	}()

	select {
	case c.send <- msg:
	default:
		// Slow consumer; drop the message rather than block the hub.
	}
}

// readPump reads client messages until the connection drops.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		//nolint:errcheck // Connection teardown
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	pongTimeout := time.Duration(c.hub.cfg.PongTimeout) * time.Second
	//nolint:errcheck // Deadline on a live connection cannot fail
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("ignoring malformed websocket message", "subject", c.subject)
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump writes queued messages and periodic pings to the client.
func (c *WSClient) writePump() {
	pingInterval := time.Duration(c.hub.cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		//nolint:errcheck // Connection teardown
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			//nolint:errcheck // Deadline on a live connection cannot fail
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				//nolint:errcheck // Best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			//nolint:errcheck // Deadline on a live connection cannot fail
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes one inbound client message.
func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "subscribe":
		if msg.Channel == "" {
			return
		}
		c.mu.Lock()
		c.channels[msg.Channel] = struct{}{}
		c.mu.Unlock()
		c.trySend(WSMessage{Type: "subscribed", Channel: msg.Channel, Timestamp: time.Now()})

	case "unsubscribe":
		c.mu.Lock()
		delete(c.channels, msg.Channel)
		c.mu.Unlock()
		c.trySend(WSMessage{Type: "unsubscribed", Channel: msg.Channel, Timestamp: time.Now()})

	case "ping":
		c.trySend(WSMessage{Type: "pong", Timestamp: time.Now()})

	default:
		c.hub.logger.Debug("unknown websocket message type",
			"subject", c.subject,
			"type", msg.Type,
		)
	}
}

// handleWS upgrades an HTTP request to a WebSocket connection.
//
// GET /ws?ticket={ticket}
//
// Authentication is by single-use ticket from POST /api/v1/auth/ws-ticket;
// the upgrade request itself carries no Authorization header.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.tickets.redeem(r.URL.Query().Get("ticket"))
	if !ok {
		writeUnauthorized(w, "valid ticket is required")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan WSMessage, wsSendBufferSize),
		subject:  subject,
		channels: map[string]struct{}{"camera.*": {}},
	}

	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}
