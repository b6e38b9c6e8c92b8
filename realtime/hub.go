// Package realtime pushes record change notifications to websocket
// clients so open listings can re-fetch their current page.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventCreated = "record.created"
	EventUpdated = "record.updated"
	EventDeleted = "record.deleted"
)

// Event announces a change in a collection.
type Event struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	ID         uint   `json:"id"`
	ParentID   *uint  `json:"parent_id,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is one websocket connection.
type Client struct {
	ID     string
	UserID uint
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans events out to every connected client.
type Hub struct {
	log        *zap.Logger
	upgrader   websocket.Upgrader
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int64
}

// NewHub returns a hub; start it with Run.
func NewHub(log *zap.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log,
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.count.Add(1)
		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("ws client too slow, dropping", zap.String("client", c.ID))
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
}

// Clients is the number of registered connections.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Publish queues ev for every client. It never blocks the caller for
// longer than the broadcast buffer allows and is a no-op once the hub stops.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("ws marshal event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.log.Warn("ws broadcast buffer full, event dropped", zap.String("type", ev.Type), zap.Uint("id", ev.ID))
	}
}

// Serve upgrades the request and attaches the connection to the hub.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}
	go c.writePump()
	go c.readPump()
	return nil
}

// readPump only services control frames; clients do not send events.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("ws closed", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
