package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voxd/voxd/internal/session"
)

// sseRetryMillis is the reconnect hint sent at the top of every stream.
const sseRetryMillis = 5000

// StreamStatus streams a session's status feed as Server-Sent Events.
//
// GET /connect/status/:session_id
func (h *Handler) StreamStatus(c *gin.Context) {
	sessionID := c.Param("session_id")

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Content-Type", "text/event-stream")

	ch, err := h.deps.Registry.Subscribe(sessionID)
	if err != nil {
		c.SSEvent("error", session.Event{
			SessionID: sessionID,
			Status:    session.StatusError,
			Message:   "Session not found",
		})
		c.Writer.Flush()
		return
	}

	fmt.Fprintf(c.Writer, "retry: %d\n\n", sseRetryMillis)
	c.Writer.Flush()

	keepalive := h.deps.Settings.Status.Keepalive()
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-ch.Events():
			c.SSEvent(ev.Status.EventName(), ev)
			if ev.Status.Terminal() {
				c.SSEvent("termination", session.Event{
					SessionID: sessionID,
					Status:    "terminated",
					Message:   "Session ended",
				})
				h.deps.Registry.Cleanup(sessionID)
				return false
			}
			return true

		case <-clientGone:
			h.deps.Logger.Infof("client disconnected from status stream [%s]", sessionID)
			h.deps.Registry.Cleanup(sessionID)
			return false

		case <-ch.Done():
			// drain anything queued before the teardown
			for {
				select {
				case ev := <-ch.Events():
					c.SSEvent(ev.Status.EventName(), ev)
				default:
					return false
				}
			}

		case <-time.After(keepalive):
			// keepalives repeat the last known state rather than a placeholder
			if last, ok := h.deps.Registry.LastEvent(sessionID); ok {
				c.SSEvent("keepalive", last)
			} else {
				c.SSEvent("keepalive", gin.H{"type": "keepalive"})
			}
			return true
		}
	})
}

// CurrentStatus returns the most recent status event for a session.
//
// GET /connect/status/current/:session_id
func (h *Handler) CurrentStatus(c *gin.Context) {
	sessionID := c.Param("session_id")

	if ev, ok := h.deps.Registry.LastEvent(sessionID); ok {
		c.JSON(http.StatusOK, ev)
		return
	}

	if _, err := h.deps.Registry.Subscribe(sessionID); err == nil {
		// session exists but has not reported yet
		c.JSON(http.StatusOK, session.Event{
			SessionID: sessionID,
			Status:    "unknown",
			Message:   "No new update",
		})
		return
	}

	c.JSON(http.StatusNotFound, session.Event{
		SessionID: sessionID,
		Status:    session.StatusError,
		Message:   "Session not found",
	})
}
