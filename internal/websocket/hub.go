package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/cache"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

// Hub maintains the set of active clients and fans messaging events out to
// them. Events arrive over Redis pub/sub, so hubs in different processes see
// the same stream.
type Hub struct {
	// Registered clients
	clients map[uuid.UUID]*Client

	// Inbound events for all connected clients
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Redis client for pub/sub
	redis *cache.RedisClient

	// Live-query invalidation target; events relayed from Redis re-run
	// the affected snapshots
	watcher *messaging.Watcher

	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub(redis *cache.RedisClient, watcher *messaging.Watcher) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		redis:      redis,
		watcher:    watcher,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	go h.subscribeToRedis()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.userID] = client
			h.mu.Unlock()

			h.redis.SetUserOnline(client.userID)
			h.redis.PublishPresence(models.UserPresence{
				UserID:   client.userID,
				Status:   "online",
				LastSeen: client.connectedAt,
			})

			log.Printf("Client registered: %s", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.mu.Unlock()

			h.redis.SetUserOffline(client.userID)
			h.redis.PublishPresence(models.UserPresence{
				UserID: client.userID,
				Status: "offline",
			})

			log.Printf("Client unregistered: %s", client.userID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client.userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// subscribeToRedis relays pub/sub events into connected clients and the
// live-query watcher.
func (h *Hub) subscribeToRedis() {
	msgPubSub := h.redis.SubscribeToMessages()
	defer msgPubSub.Close()
	msgChan := msgPubSub.Channel()

	convPubSub := h.redis.SubscribeToConversations()
	defer convPubSub.Close()
	convChan := convPubSub.Channel()

	presencePubSub := h.redis.SubscribeToPresence()
	defer presencePubSub.Close()
	presenceChan := presencePubSub.Channel()

	typingPubSub := h.redis.SubscribeToTyping()
	defer typingPubSub.Close()
	typingChan := typingPubSub.Channel()

	for {
		select {
		case msg := <-msgChan:
			h.relayMessageEvent([]byte(msg.Payload))

		case conv := <-convChan:
			h.relayConversationEvent([]byte(conv.Payload))

		case presence := <-presenceChan:
			h.broadcast <- []byte(presence.Payload)

		case typing := <-typingChan:
			h.broadcast <- []byte(typing.Payload)
		}
	}
}

// relayMessageEvent targets the two participants of the message and
// invalidates the conversation's live queries.
func (h *Hub) relayMessageEvent(payload []byte) {
	var ws models.WSMessage
	if err := json.Unmarshal(payload, &ws); err != nil {
		return
	}

	raw, _ := json.Marshal(ws.Payload)
	var m models.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		h.broadcast <- payload
		return
	}

	if h.watcher != nil {
		h.watcher.Notify(messaging.ChangeEvent{
			Kind:           messaging.ChangeMessage,
			ConversationID: m.ConversationID,
			Participants:   []uuid.UUID{m.SenderID, m.ReceiverID},
			Message:        &m,
		})
	}

	h.sendRaw([]uuid.UUID{m.SenderID, m.ReceiverID}, payload)
}

// relayConversationEvent targets the listed participants and invalidates
// their conversation lists.
func (h *Hub) relayConversationEvent(payload []byte) {
	var ws models.WSMessage
	if err := json.Unmarshal(payload, &ws); err != nil {
		return
	}

	raw, _ := json.Marshal(ws.Payload)
	var p models.WSConversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.broadcast <- payload
		return
	}

	if h.watcher != nil {
		kind := messaging.ChangeConversation
		if ws.Event == models.EventConversationDeleted {
			kind = messaging.ChangeConversationDeleted
		}
		h.watcher.Notify(messaging.ChangeEvent{
			Kind:           kind,
			ConversationID: p.ConversationID,
			Participants:   p.Participants,
		})
	}

	h.sendRaw(p.Participants, payload)
}

func (h *Hub) sendRaw(userIDs []uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range userIDs {
		if client, ok := h.clients[userID]; ok {
			select {
			case client.send <- data:
			default:
				// Client's send channel is full, skip
			}
		}
	}
}

// SendToUser sends an event to a specific user
func (h *Hub) SendToUser(userID uuid.UUID, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.sendRaw([]uuid.UUID{userID}, data)
	return nil
}

// SendToParticipants sends an event to every listed participant
func (h *Hub) SendToParticipants(userIDs []uuid.UUID, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.sendRaw(userIDs, data)
	return nil
}

// GetOnlineUsers returns the list of online user IDs
func (h *Hub) GetOnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]uuid.UUID, 0, len(h.clients))
	for userID := range h.clients {
		userIDs = append(userIDs, userID)
	}

	return userIDs
}

// IsUserOnline checks if a user is online
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}
