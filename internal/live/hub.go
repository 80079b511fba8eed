// Package live exposes a running engine's eventbus over a websocket: a
// read-only broadcast hub, adapted from a bidirectional simulation
// control-channel hub into a one-way monitoring tap. There is no
// inbound command handling — clients only ever receive wire.Envelope
// messages (spec.md's Non-goals exclude a control plane / UI).
package live

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ersantana/bobcatsim/internal/eventbus"
	"github.com/ersantana/bobcatsim/internal/wire"
)

// Client is one connected websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans out broadcast messages to every connected client and tracks
// connect/disconnect.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// NewHub creates an idle hub; call Run in its own goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes connect/disconnect/broadcast until the register channel
// is closed.
// It owns no goroutines of its own beyond the caller's.
func (h *Hub) Run() {
	for {
		select {
		case client, ok := <-h.register:
			if !ok {
				return
			}
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Printf("live: client %s send buffer full, dropping", client.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent wraps and broadcasts one simulation event. Wire this
// up via bus.Subscribe(hub.BroadcastEvent) to stream a live run.
func (h *Hub) BroadcastEvent(e eventbus.Event) {
	data, err := wire.ToJSON(wire.NewEventMessage(e))
	if err != nil {
		log.Printf("live: failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("live: broadcast channel full, dropping event %s", e.Type)
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound traffic (there is no control protocol) but
// still drains the connection so the websocket library's ping/pong and
// close handling function correctly, and unregisters on disconnect.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
