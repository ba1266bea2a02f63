package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/gocomet/ride-dispatch/internal/auth"
	"github.com/gocomet/ride-dispatch/pkg/logger"
	"github.com/gocomet/ride-dispatch/pkg/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // trusted edge terminates origin policy
	},
}

// HandleWebSocket handles GET /v1/ws. The token is verified before the
// upgrade; a failing connection is refused and never registered.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	token, err := auth.TokenFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
		return
	}
	id, err := h.Auth.Verify(token)
	if err != nil {
		h.Logger.Warn("WebSocket authentication failed", logger.Err(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(conn, id, h.Gateway, h.Logger)
	h.Gateway.Connected(client)

	go client.WritePump()
	go client.ReadPump()
}
