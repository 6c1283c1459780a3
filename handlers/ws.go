package handlers

import (
	"harmonia/types"
	"harmonia/websocket"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// WSHandler upgrades UI connections and subscribes them to state topics.
type WSHandler struct {
	hub    websocket.Hub
	logger *log.Logger
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(hub websocket.Hub, logger *log.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// HandleConnection upgrades the request and registers the client under the
// requested topic. Unknown topics fall back to "all".
func (h *WSHandler) HandleConnection(c *gin.Context) {
	topic := c.Query("topic")
	switch topic {
	case types.TopicLibrary, types.TopicDownloads, types.TopicPlayer, types.TopicAll:
	default:
		topic = types.TopicAll
	}

	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, topic, h.logger)
	h.hub.RegisterClient(client)
	client.StartPumps()
}
