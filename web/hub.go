package web

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// Controller is what the web package needs from the runner. It lives here so the
// web package does not import package main.
type Controller interface {
	// State returns a JSON-encoded representation of the current run.
	State() ([]byte, error)
	Pause()
	Resume()
	IsPaused() bool
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts messages to the clients.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	ctl    Controller
	logger *log.Logger
}

// NewHub creates a new Hub. New clients receive ctl's current state first.
func NewHub(ctl Controller, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(os.Stderr, "[web] ", log.LstdFlags)
	}
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		ctl:        ctl,
		logger:     logger,
	}
}

// Run starts the hub's event loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			if h.ctl == nil {
				continue
			}
			if state, err := h.ctl.State(); err == nil {
				client.send <- state
			} else {
				h.logger.Printf("failed to get state for new client: %v", err)
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Broadcast sends message to every connected client. It is a no-op on a nil or stopped hub.
func (h *Hub) Broadcast(message []byte) {
	if h == nil {
		return
	}
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// BroadcastFullState fetches the current state from the controller and broadcasts it.
// The runner calls this after every executor turn.
func (h *Hub) BroadcastFullState() {
	if h == nil || h.ctl == nil {
		return
	}
	state, err := h.ctl.State()
	if err != nil {
		h.logger.Printf("error getting state for broadcast: %v", err)
		return
	}
	h.Broadcast(state)
}

func (h *Hub) attach(conn *websocket.Conn) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// readPump discards inbound messages and unregisters the client when the connection drops.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Printf("websocket error: %v", err)
			}
			return
		}
	}
}

// writePump sends queued messages and keepalive pings to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
