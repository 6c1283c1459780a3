package websocket

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"harmonia/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The UI is a local desktop shell; accept any origin.
		return true
	},
}

// Client represents one subscribed WebSocket connection.
type Client struct {
	hub    Hub
	conn   *websocket.Conn
	send   chan types.StateMessage
	topic  string
	logger *log.Logger
}

// NewClient creates a client subscribed to topic.
func NewClient(hub Hub, conn *websocket.Conn, topic string, logger *log.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan types.StateMessage, 256),
		topic:  topic,
		logger: logger,
	}
}

// StartPumps starts the read and write pumps for the client.
func (c *Client) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// readPump drains the connection; clients send nothing meaningful, the
// read loop only detects disconnects and answers pings.
func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "err", err)
			}
			break
		}
	}
}

// writePump forwards queued snapshots and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("websocket write error", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GetUpgrader returns the WebSocket upgrader.
func GetUpgrader() websocket.Upgrader {
	return upgrader
}
