package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ensemble/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary origins.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Dispatcher receives decoded client messages and connection lifecycle
// events. Implemented by the hub.
type Dispatcher interface {
	HandleConnect(conn *Connection)
	Dispatch(conn *Connection, env *types.Envelope)
	HandleDisconnect(conn *Connection)
}

// Handler upgrades HTTP requests to websockets and runs the per-connection
// read loop.
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
}

// NewHandler creates a websocket handler over the connection registry.
func NewHandler(registry *Registry, dispatcher Dispatcher) *Handler {
	return &Handler{registry: registry, dispatcher: dispatcher}
}

// HandleWebSocket upgrades the request and serves the connection until the
// client disconnects. Every connection starts with a generated identity;
// clients replace it through registration or rejoin messages.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn)
	wsConn.SetUserID(uuid.NewString())

	if err := h.registry.Register(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	h.dispatcher.HandleConnect(wsConn)

	go h.pingLoop(wsConn)
	h.readLoop(wsConn)
}

func (h *Handler) readLoop(wsConn *Connection) {
	defer func() {
		h.dispatcher.HandleDisconnect(wsConn)
		h.registry.Unregister(wsConn)
		_ = wsConn.Close()
	}()

	wsConn.conn.SetReadLimit(types.MaxInboundBytes)
	_ = wsConn.conn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.conn.SetPongHandler(func(string) error {
		return wsConn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Connection %s closed unexpectedly: %v", wsConn.UserID(), err)
			}
			return
		}
		h.handleMessage(wsConn, data)
	}
}

// handleMessage decodes and dispatches one inbound message. A panic in a
// handler is contained to the message that caused it; the connection and
// the rest of the server keep running.
func (h *Handler) handleMessage(wsConn *Connection, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Recovered from panic handling message from %s: %v", wsConn.UserID(), rec)
			_ = wsConn.WriteJSON(types.ErrorOutbound("", "internal error handling message"))
		}
	}()

	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		_ = wsConn.WriteJSON(types.ErrorOutbound("", "invalid message format"))
		return
	}
	if err := env.Validate(); err != nil {
		_ = wsConn.WriteJSON(types.ErrorOutbound(env.RoomName, err.Error()))
		return
	}

	h.dispatcher.Dispatch(wsConn, &env)
}

func (h *Handler) pingLoop(wsConn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := wsConn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-wsConn.Done():
			return
		}
	}
}
