package websocket

import (
	"sync"

	"github.com/charmbracelet/log"

	"harmonia/types"
)

// Hub fans state-change notifications out to subscribed UI clients.
// Clients subscribe to a topic (library, downloads, player) or to "all".
type Hub interface {
	Run()
	Publish(msg types.StateMessage)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

// hub maintains the set of active clients keyed by topic.
type hub struct {
	clients map[string]map[*Client]bool

	broadcast  chan types.StateMessage
	register   chan *Client
	unregister chan *Client

	logger *log.Logger
	mu     sync.RWMutex
}

// NewHub creates a hub; call Run on its own goroutine.
func NewHub(logger *log.Logger) Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.StateMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run is the hub's main event loop.
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "topic", client.topic)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.topic]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.topic)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "topic", client.topic)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.deliver(h.clients[message.Topic], message)
			if message.Topic != types.TopicAll {
				h.deliver(h.clients[types.TopicAll], message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver sends to every client in the set, dropping clients whose send
// buffer is full; callers hold the lock.
func (h *hub) deliver(clients map[*Client]bool, message types.StateMessage) {
	for client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

// Publish queues a state snapshot for broadcast. Never blocks: if the
// broadcast channel is full the message is dropped, since a fresher
// snapshot is always on the way.
func (h *hub) Publish(msg types.StateMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping message", "topic", msg.Topic)
	}
}

// RegisterClient registers a new client with the hub.
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client from the hub.
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
