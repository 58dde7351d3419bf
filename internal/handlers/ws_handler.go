package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prudhvinik1/sketchsync/internal/bus"
	"github.com/prudhvinik1/sketchsync/internal/models"
	"github.com/prudhvinik1/sketchsync/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Session access is gated by the identity token, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler bridges a session's sync channel to a WebSocket. Outbound frames
// carry stroke notifications, truncations and peer cursors; the only inbound
// frame is the client's own cursor position, which goes straight to the
// ephemeral channel. Presence follows the socket: online on subscribe,
// offline on disconnect, heartbeat refreshed by pongs.
type WSHandler struct {
	sessions *services.SessionService
	strokes  *services.StrokeService
	channel  *bus.SyncChannel
	identity *services.IdentityService
}

func NewWSHandler(
	sessions *services.SessionService,
	strokes *services.StrokeService,
	channel *bus.SyncChannel,
	identity *services.IdentityService,
) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		strokes:  strokes,
		channel:  channel,
		identity: identity,
	}
}

// outboundFrame is what the gateway writes to the socket.
type outboundFrame struct {
	Type   string              `json:"type"`
	Point  *models.StrokePoint `json:"point,omitempty"`
	Cursor *bus.CursorMessage  `json:"cursor,omitempty"`
}

// inboundFrame is what clients send. Only cursor frames are accepted.
type inboundFrame struct {
	Type            string    `json:"type"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Color           string    `json:"color"`
	ClientTimestamp time.Time `json:"client_timestamp"`
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on WebSocket requests, so the token
	// rides in the query string here.
	claims, err := h.identity.VerifyToken(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil || !session.Joinable() {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	sub, err := h.channel.Subscribe(r.Context(), sessionID, claims.AuthorID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to subscribe")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Unsubscribe(context.Background())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()
	// Deliberately not r.Context(): teardown must run even when the
	// request context is already done.
	defer sub.Unsubscribe(context.Background())

	go h.writeLoop(ctx, conn, sub.Strokes(), sub.Cursors())
	h.readLoop(ctx, conn, sub, sessionID, claims.AuthorID)
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, strokes <-chan bus.StrokeNotification, cursors <-chan bus.CursorMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case notification, ok := <-strokes:
			if !ok {
				// Subscription dropped server-side. Close the socket;
				// the client resubscribes and refetches history.
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription lost"),
					time.Now().Add(writeWait))
				return
			}
			frame := outboundFrame{Type: string(notification.Kind), Point: notification.Point}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}

		case cursor, ok := <-cursors:
			if !ok {
				// The cursor stream closes slightly before the stroke
				// stream; a nil channel keeps this arm from busy-looping
				// until the stroke close is observed.
				cursors = nil
				continue
			}
			frame := outboundFrame{Type: "cursor", Cursor: &cursor}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sub *bus.Subscription, sessionID, authorID uuid.UUID) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := sub.Heartbeat(ctx); err != nil {
			log.Printf("failed to refresh presence heartbeat: %v", err)
		}
		return nil
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type != "cursor" {
			continue
		}

		cursor := &models.CursorBroadcast{
			X:               frame.X,
			Y:               frame.Y,
			Color:           frame.Color,
			ClientTimestamp: frame.ClientTimestamp,
		}
		if err := h.strokes.BroadcastCursor(ctx, sessionID, authorID, cursor); err != nil {
			// Fire-and-forget class: dropping one position is fine.
			log.Printf("failed to broadcast cursor: %v", err)
		}
	}
}
