package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/suturelab/tissuesim/internal/session"
)

// Hub tracks connected viewers, grouped by session.
type Hub struct {
	rooms      map[string]map[*Client]bool // sessionID -> viewers
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx ends, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[c.sessionID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[c.sessionID] = room
			}
			room[c] = true
			n := len(room)
			h.mu.Unlock()
			close(c.joined)
			log.Printf("[WS] Viewer %s joined session %s (room_size=%d)", c.viewerID, c.sessionID, n)

		case c := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[c.sessionID]; ok && room[c] {
				delete(room, c)
				if len(room) == 0 {
					delete(h.rooms, c.sessionID)
				}
				close(c.send)
				log.Printf("[WS] Viewer %s left session %s", c.viewerID, c.sessionID)
			}
			h.mu.Unlock()
		}
	}
}

// join hands c to the hub and waits until it is in its room; false once
// the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		<-c.joined
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastToSession sends a message to every viewer of a session.
func (h *Hub) BroadcastToSession(sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[sessionID] {
		select {
		case c.send <- data:
		default:
			log.Printf("[WS] Send buffer full for viewer %s in session %s, dropping message", c.viewerID, sessionID)
		}
	}
}

// BroadcastFrame pushes one render frame to a session's viewers.
func (h *Hub) BroadcastFrame(sessionID string, f session.Frame) {
	if h.RoomSize(sessionID) == 0 {
		return
	}
	h.BroadcastToSession(sessionID, map[string]interface{}{
		"type": "frame",
		"data": f,
	})
}

// RoomSize reports how many viewers watch a session.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
