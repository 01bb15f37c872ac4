package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/suturelab/tissuesim/internal/session"
	"github.com/suturelab/tissuesim/internal/tissue"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

var viewerSeq atomic.Int64

// Client is one websocket viewer of a session
type Client struct {
	hub       *Hub
	sess      *session.Session
	conn      *websocket.Conn
	viewerID  string
	sessionID string
	send      chan []byte
	joined    chan struct{}
}

// Message types
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleSessionWebSocket upgrades a viewer connection for session :id.
func HandleSessionWebSocket(hub *Hub, mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := mgr.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:       hub,
			sess:      sess,
			conn:      conn,
			viewerID:  "V" + strconv.FormatInt(viewerSeq.Add(1), 10),
			sessionID: sess.ID,
			send:      make(chan []byte, 64),
			joined:    make(chan struct{}),
		}
		if !hub.join(client) {
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub dropped us; best-effort close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for viewer %s: %v", c.viewerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for viewer %s: %v", c.viewerID, err)
				return
			}
		}
	}
}

// readPump reads viewer messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Unexpected close for viewer %s: %v", c.viewerID, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message")
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage processes one viewer message.
func (c *Client) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "tool_contact":
		var contact tissue.ToolContact
		if err := json.Unmarshal(msg.Data, &contact); err != nil {
			c.sendError("Invalid contact data")
			return
		}
		c.handleToolContact(contact)

	case "get_state":
		c.sendJSON(map[string]interface{}{
			"type":    "state",
			"summary": c.sess.Summary(),
			"data":    c.sess.Frame(),
		})

	default:
		c.sendError("Unknown message type")
	}
}

// handleToolContact applies a contact and tells the whole room about it.
func (c *Client) handleToolContact(contact tissue.ToolContact) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := c.sess.Submit(ctx, contact)
	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			c.sendError("Session closed")
			return
		}
		c.sendError(err.Error())
		return
	}

	c.sendJSON(map[string]interface{}{
		"type": "contact_result",
		"data": ev,
	})
	c.hub.BroadcastToSession(c.sessionID, map[string]interface{}{
		"type":   "contact",
		"viewer": c.viewerID,
		"data":   ev,
	})
}

// sendJSON queues a message for this viewer only.
func (c *Client) sendJSON(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.rooms[c.sessionID][c] {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for viewer %s, dropping reply", c.viewerID)
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.sendJSON(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}
