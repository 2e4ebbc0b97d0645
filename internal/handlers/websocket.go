package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/voxd/voxd/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// wsEvent is the frame shape on the WebSocket status feed, mirroring the SSE
// event name + payload pairs.
type wsEvent struct {
	Event string        `json:"event"`
	Data  session.Event `json:"data"`
}

// StatusWebSocket serves the status feed over a WebSocket.
//
// GET /ws/status/:session_id
func (h *Handler) StatusWebSocket(c *gin.Context) {
	sessionID := c.Param("session_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.deps.Logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch, err := h.deps.Registry.Subscribe(sessionID)
	if err != nil {
		conn.WriteJSON(wsEvent{Event: "error", Data: session.Event{
			SessionID: sessionID,
			Status:    session.StatusError,
			Message:   "Session not found",
		}})
		return
	}

	// reader only watches for the peer closing
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepalive := h.deps.Settings.Status.Keepalive()
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}

	for {
		select {
		case ev := <-ch.Events():
			if err := conn.WriteJSON(wsEvent{Event: ev.Status.EventName(), Data: ev}); err != nil {
				h.deps.Registry.Cleanup(sessionID)
				return
			}
			if ev.Status.Terminal() {
				conn.WriteJSON(wsEvent{Event: "termination", Data: session.Event{
					SessionID: sessionID,
					Status:    "terminated",
					Message:   "Session ended",
				}})
				h.deps.Registry.Cleanup(sessionID)
				return
			}

		case <-clientGone:
			h.deps.Logger.Infof("client disconnected from status websocket [%s]", sessionID)
			h.deps.Registry.Cleanup(sessionID)
			return

		case <-ch.Done():
			for {
				select {
				case ev := <-ch.Events():
					conn.WriteJSON(wsEvent{Event: ev.Status.EventName(), Data: ev})
				default:
					return
				}
			}

		case <-time.After(keepalive):
			last, ok := h.deps.Registry.LastEvent(sessionID)
			if !ok {
				last = session.Event{SessionID: sessionID, Status: "unknown"}
			}
			if err := conn.WriteJSON(wsEvent{Event: "keepalive", Data: last}); err != nil {
				h.deps.Registry.Cleanup(sessionID)
				return
			}
		}
	}
}
