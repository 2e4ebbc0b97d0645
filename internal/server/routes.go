package server

import (
	"github.com/gin-gonic/gin"

	"github.com/voxd/voxd/internal/handlers"
	"github.com/voxd/voxd/pkg/logger"
)

// NewRouter assembles the HTTP surface.
func NewRouter(h *handlers.Handler, log *logger.Logger, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(log))

	r.GET("/health", h.Health)
	r.GET("/ws/status/:session_id", h.StatusWebSocket)

	connect := r.Group("/connect")
	{
		connect.POST("/copy/start", h.StartCopy)
		connect.POST("/chat/start", h.StartChat)
		connect.GET("/status/:session_id", h.StreamStatus)
		connect.GET("/status/current/:session_id", h.CurrentStatus)
	}

	return r
}
