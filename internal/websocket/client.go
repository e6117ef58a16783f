package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ridelink/backend/internal/cache"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 10240 // 10KB

	// Redis token-bucket parameters for inbound sends
	sendRate  = 10
	sendBurst = 20
)

// Client represents a WebSocket client
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	userID      uuid.UUID
	email       string
	connectedAt time.Time

	svc   *messaging.Service
	redis *cache.RedisClient
}

// NewClient creates a new WebSocket client
func NewClient(
	hub *Hub,
	conn *websocket.Conn,
	userID uuid.UUID,
	email string,
	svc *messaging.Service,
	redis *cache.RedisClient,
) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		userID:      userID,
		email:       email,
		connectedAt: time.Now(),
		svc:         svc,
		redis:       redis,
	}
}

// ReadPump pumps messages from the WebSocket connection into the service
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming WebSocket messages
func (c *Client) handleMessage(data []byte) {
	var wsMsg models.WSMessage
	if err := json.Unmarshal(data, &wsMsg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch wsMsg.Event {
	case models.EventMessageSend:
		c.handleMessageSend(wsMsg.Payload)

	case models.EventMessageRead:
		c.handleMessageRead(wsMsg.Payload)

	case models.EventTypingStart:
		c.handleTyping(wsMsg.Payload, true)

	case models.EventTypingStop:
		c.handleTyping(wsMsg.Payload, false)

	default:
		c.sendError("Unknown event type")
	}
}

// handleMessageSend sends a message through the messaging service
func (c *Client) handleMessageSend(payload interface{}) {
	data, _ := json.Marshal(payload)
	var req models.WSMessageSendPayload
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("Invalid message payload")
		return
	}

	allowed, err := c.redis.AllowAction(c.userID, "message_send", sendRate, sendBurst)
	if err == nil && !allowed {
		c.sendError("rate_limited")
		return
	}

	ctx := context.Background()
	conv, err := c.svc.ConversationByID(ctx, req.ConversationID)
	if err != nil || !conv.HasParticipant(c.userID) || !conv.HasParticipant(req.ReceiverID) {
		c.sendError("Access denied")
		return
	}

	if _, err := c.svc.SendMessage(ctx, req.ConversationID, c.userID, req.ReceiverID, req.Content, req.MessageType, req.RideID); err != nil {
		c.sendError("Failed to send message")
		return
	}
}

// handleMessageRead marks a conversation read for this user
func (c *Client) handleMessageRead(payload interface{}) {
	data, _ := json.Marshal(payload)
	var req models.WSMessageReadPayload
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("Invalid read payload")
		return
	}

	if err := c.svc.MarkRead(context.Background(), req.ConversationID, c.userID); err != nil {
		c.sendError("Failed to mark conversation read")
		return
	}
}

// handleTyping relays typing indicators through Redis
func (c *Client) handleTyping(payload interface{}, typing bool) {
	data, _ := json.Marshal(payload)
	var req models.WSTypingPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	if typing {
		c.redis.SetTyping(req.ConversationID, c.userID)
	} else {
		c.redis.RemoveTyping(req.ConversationID, c.userID)
	}

	c.redis.PublishTyping(models.TypingIndicator{
		ConversationID: req.ConversationID,
		UserID:         c.userID,
		IsTyping:       typing,
	})
}

// sendError sends an error event to the client
func (c *Client) sendError(message string) {
	data, err := json.Marshal(models.WSMessage{
		Event:   models.EventError,
		Payload: models.WSErrorPayload{Message: message},
	})
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
	}
}
