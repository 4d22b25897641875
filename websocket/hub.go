package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub tracks active interview connections so the server can report on
// and shut them down cleanly.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// Client is one candidate's live interview connection. Decoded frames
// are delivered on Inbound; the channel closes when the candidate
// disconnects. Outbound messages go through SendJSON.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	inbound   chan ClientMessage
	done      chan struct{}
	closeOnce sync.Once
	UserID    string
	SessionID string
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "session_id", client.SessionID)
		}
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, sessionID string) *Client {
	client := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		inbound:   make(chan ClientMessage, 64),
		done:      make(chan struct{}),
		UserID:    userID,
		SessionID: sessionID,
	}

	h.register <- client
	return client
}

// Inbound is the stream of decoded candidate messages. Closed on
// disconnect.
func (c *Client) Inbound() <-chan ClientMessage {
	return c.inbound
}

// SendJSON marshals a message onto the send queue. Drops the message
// if the queue is full rather than blocking the session loop.
func (c *Client) SendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal outbound message", "error", err, "session_id", c.SessionID)
		return
	}
	select {
	case c.Send <- data:
	default:
		slog.Warn("Send queue full, dropping message", "session_id", c.SessionID)
	}
}

// ReadPump decodes candidate frames onto the inbound channel.
// Malformed frames and unknown message types are ignored; only a read
// failure ends the pump.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		close(c.inbound)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1024 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Warn("Ignoring malformed frame", "error", err, "session_id", c.SessionID)
			continue
		}

		switch msg.Type {
		case TypeResponseComplete, TypeVideoMetrics, TypeEnd:
			// Once the session is shut down nothing consumes inbound;
			// a still-chatty candidate must not pin the pump.
			select {
			case c.inbound <- msg:
			case <-c.done:
				return
			}
		default:
			slog.Warn("Ignoring unknown message type", "type", msg.Type, "session_id", c.SessionID)
		}
	}
}

// Shutdown releases the read pump if it is blocked delivering a
// message nobody will consume. Safe to call more than once.
func (c *Client) Shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
