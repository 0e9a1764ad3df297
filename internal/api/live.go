package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fieldmock/internal/auth"
	"fieldmock/internal/current"
)

// LiveHub fans generated poller documents out to connected WebSocket
// clients. It implements the poller's sink interface; slow clients are
// dropped rather than allowed to stall the generator tick.
type LiveHub struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

type liveClient struct {
	conn *websocket.Conn
	send chan current.Document
}

// NewLiveHub creates an empty hub.
func NewLiveHub(logger *zap.SugaredLogger) *LiveHub {
	return &LiveHub{
		logger:  logger,
		clients: make(map[*liveClient]struct{}),
	}
}

// PublishDocument delivers a document to every connected client.
// Clients whose send buffer is full are disconnected.
func (h *LiveHub) PublishDocument(doc current.Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- doc:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *LiveHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *LiveHub) add(c *liveClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *LiveHub) remove(c *liveClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// LiveHandler upgrades /api/live connections and attaches them to the hub.
type LiveHandler struct {
	hub          *LiveHub
	wsTokenStore *auth.WSTokenStore
	noAuth       bool
	logger       *zap.SugaredLogger
	upgrader     websocket.Upgrader
}

// NewLiveHandler creates the WebSocket endpoint handler.
func NewLiveHandler(hub *LiveHub, wsTokenStore *auth.WSTokenStore, noAuth bool, logger *zap.SugaredLogger) *LiveHandler {
	h := &LiveHandler{
		hub:          hub,
		wsTokenStore: wsTokenStore,
		noAuth:       noAuth,
		logger:       logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin validates the connection using a one-time ws_token.
// Browsers cannot set Authorization headers on WebSocket upgrades, so
// the client fetches a short-lived token first and passes it here.
func (h *LiveHandler) checkOrigin(r *http.Request) bool {
	if h.noAuth {
		return true
	}

	token := r.URL.Query().Get("ws_token")
	if token == "" {
		h.logger.Debug("live stream rejected: missing ws_token")
		return false
	}

	_, valid := h.wsTokenStore.Validate(token)
	if !valid {
		h.logger.Debug("live stream rejected: invalid or expired ws_token")
	}
	return valid
}

// Connect handles GET /api/live.
func (h *LiveHandler) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}

	c := &liveClient{
		conn: conn,
		send: make(chan current.Document, 8),
	}
	h.hub.add(c)
	h.logger.Debugw("live client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// writeLoop pushes documents to the client until the channel closes.
func (h *LiveHandler) writeLoop(c *liveClient) {
	defer c.conn.Close()
	for doc := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(doc); err != nil {
			h.hub.remove(c)
			return
		}
	}
}

// readLoop drains client frames so pings are answered; any read error
// tears the connection down.
func (h *LiveHandler) readLoop(c *liveClient) {
	defer func() {
		h.hub.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
