package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Harshcreator/live-attendance-system/internal/auth"
	"github.com/Harshcreator/live-attendance-system/pkg/interfaces"
	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

// Close codes distinguishing each authentication failure kind.
const (
	CloseNoToken       = 4001
	CloseMisconfigured = 4002
	CloseInvalidToken  = 4003
)

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	readTimeout      = 60 * time.Second
	controlTimeout   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is a deployment concern; the credential in
		// the URL is what gates access.
		return true
	},
	HandshakeTimeout: handshakeTimeout,
}

// IntentHandler processes decoded intents on behalf of a connection
// and reports current session status for the join snapshot.
type IntentHandler interface {
	HandleIntent(ctx context.Context, handle string, issuer types.Identity, intent types.Intent)
	StatusEvent() types.SessionStatusEvent
}

// Handler owns the connect/authenticate/teardown protocol for each
// WebSocket connection: it verifies the bearer credential supplied as
// a query parameter, registers the connection, pushes the initial
// state snapshot, and feeds decoded intents to the coordinator.
type Handler struct {
	registry *Registry
	verifier interfaces.TokenVerifier
	intents  IntentHandler
}

// NewHandler creates a connection lifecycle handler.
func NewHandler(registry *Registry, verifier interfaces.TokenVerifier, intents IntentHandler) *Handler {
	return &Handler{
		registry: registry,
		verifier: verifier,
		intents:  intents,
	}
}

// HandleWebSocket upgrades the request and authenticates the
// connection. Failures close the transport with a distinguishing
// status code and never register anything.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	if token == "" {
		closeWithCode(conn, CloseNoToken, "no token provided")
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		if err == auth.ErrNoSecret {
			closeWithCode(conn, CloseMisconfigured, "server configuration error")
		} else {
			closeWithCode(conn, CloseInvalidToken, "invalid token")
		}
		return
	}

	wsConn := NewConnection(conn, *identity)
	if err := h.registry.Register(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	// Initial push: connection confirmation, then a session snapshot
	// so late joiners see in-progress attendance immediately.
	if err := wsConn.WriteJSON(types.NewConnectedEvent(*identity)); err != nil {
		log.Printf("Failed to send connected event: %v", err)
	}
	if err := wsConn.WriteJSON(h.intents.StatusEvent()); err != nil {
		log.Printf("Failed to send status snapshot: %v", err)
	}

	log.Printf("Connection established: handle=%s user=%s role=%s",
		wsConn.ID(), identity.UserID, identity.Role)

	go h.readLoop(wsConn)
}

// readLoop processes inbound frames for one connection until the
// transport closes or errors, then deregisters unconditionally.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.registry.Deregister(conn.ID())
		_ = conn.Close()
		log.Printf("Connection closed: handle=%s user=%s", conn.ID(), conn.Identity().UserID)
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(controlTimeout)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: handle=%s: %v", conn.ID(), err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		intent := types.DecodeIntent(data)
		h.intents.HandleIntent(context.Background(), conn.ID(), conn.Identity(), intent)
	}
}

// closeWithCode sends a close frame carrying the failure code, then
// tears down the transport.
func closeWithCode(conn *websocket.Conn, code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(controlTimeout)); err != nil {
		log.Printf("Failed to send close frame (code=%d): %v", code, err)
	}
	_ = conn.Close()
}
