package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suturelab/tissuesim/internal/session"
	"github.com/suturelab/tissuesim/internal/ws"
)

// HandleSessionWebSocket streams frames of a session to a viewer
func HandleSessionWebSocket(hub *ws.Hub, mgr *session.Manager) gin.HandlerFunc {
	return ws.HandleSessionWebSocket(hub, mgr)
}
