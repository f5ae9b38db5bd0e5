package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/servomount/internal/auth"
	"github.com/nerrad567/servomount/internal/infrastructure/config"
	"github.com/nerrad567/servomount/internal/infrastructure/logging"
	"github.com/nerrad567/servomount/internal/thing"
)

// Web Thing WebSocket message types.
const (
	WSTypeSetProperty          = "setProperty"
	WSTypeRequestAction        = "requestAction"
	WSTypeAddEventSubscription = "addEventSubscription"
	WSTypePropertyStatus       = "propertyStatus"
	WSTypeError                = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is the envelope of every message sent to or from a client.
type WSMessage struct {
	MessageType string `json:"messageType"`
	Data        any    `json:"data"`
}

// wsInbound is WSMessage with the data left raw for per-type decoding.
type wsInbound struct {
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data"`
}

// WSErrorData is the data of an error message.
type WSErrorData struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Request json.RawMessage `json:"request,omitempty"`
}

// Hub manages WebSocket connections and broadcasts property changes.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	thing  *thing.Thing
	logger *logging.Logger

	// role is the caller's role when authentication is enabled, empty otherwise.
	role auth.Role
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast sends a message to every connected client.
// The client list is snapshotted under the hub lock and sent to after release.
func (h *Hub) Broadcast(messageType string, data any) {
	payload, err := json.Marshal(WSMessage{MessageType: messageType, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(payload)
	}
	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "type", messageType, "recipients", len(clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to the thing's WebSocket.
// Authentication, when enabled, has already run in authMiddleware.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, wsSendBufferSize),
		thing:  s.thing,
		logger: s.logger,
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		client.role = claims.Role
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := cfg.PingPeriod()
	pongWait := cfg.PongWait()
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			} else {
				c.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := cfg.PongWait()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil || msg.MessageType == "" {
		c.sendError(http.StatusBadRequest, "invalid message", data)
		return
	}

	switch msg.MessageType {
	case WSTypeSetProperty:
		c.handleSetProperty(msg, data)
	case WSTypeRequestAction:
		if !c.allowed(auth.PermActionRequest) {
			c.sendError(http.StatusForbidden, "insufficient permissions", data)
			return
		}
		c.sendError(http.StatusBadRequest, "no such action", data)
	case WSTypeAddEventSubscription:
		// The thing defines no events, so there is nothing to deliver.
	default:
		c.sendError(http.StatusBadRequest, "unknown messageType: "+msg.MessageType, data)
	}
}

// handleSetProperty applies every {name: value} pair in the message data.
// Accepted writes reach all clients as propertyStatus through the thing observer.
func (c *WSClient) handleSetProperty(msg wsInbound, raw []byte) {
	if !c.allowed(auth.PermPropertyWrite) {
		c.sendError(http.StatusForbidden, "insufficient permissions", raw)
		return
	}

	var values map[string]any
	if err := json.Unmarshal(msg.Data, &values); err != nil || len(values) == 0 {
		c.sendError(http.StatusBadRequest, "setProperty data must be an object of property values", raw)
		return
	}

	for name, value := range values {
		if _, err := c.thing.SetProperty(name, value, thing.SourceWebSocket); err != nil {
			status, _ := classifyWriteError(err)
			c.logger.Warn("websocket property write rejected", "property", name, "error", err)
			c.sendError(status, err.Error(), raw)
		}
	}
}

// allowed reports whether the client's role grants perm. Clients of a server
// without authentication carry no role and are allowed everything.
func (c *WSClient) allowed(perm auth.Permission) bool {
	if c.role == "" {
		return true
	}
	return auth.HasPermission(c.role, perm)
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// sendError sends an error message carrying the offending request.
func (c *WSClient) sendError(status int, message string, request []byte) {
	data := WSErrorData{
		Status:  fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Message: message,
	}
	if json.Valid(request) {
		data.Request = request
	}
	payload, err := json.Marshal(WSMessage{MessageType: WSTypeError, Data: data})
	if err != nil {
		return
	}
	c.trySend(payload)
}
