package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

const (
	channelMessages      = "messages"
	channelConversations = "conversations"
	channelPresence      = "presence"
	channelTyping        = "typing"

	unreadBadgeTTL = 30 * time.Second
)

type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		ctx:    ctx,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Presence Management

// SetUserOnline sets a user as online
func (r *RedisClient) SetUserOnline(userID uuid.UUID) error {
	key := fmt.Sprintf("presence:user:%s", userID.String())
	presence := models.UserPresence{
		UserID:   userID,
		Status:   "online",
		LastSeen: time.Now(),
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Set(r.ctx, key, data, 5*time.Minute).Err()
}

// SetUserOffline sets a user as offline
func (r *RedisClient) SetUserOffline(userID uuid.UUID) error {
	key := fmt.Sprintf("presence:user:%s", userID.String())
	presence := models.UserPresence{
		UserID:   userID,
		Status:   "offline",
		LastSeen: time.Now(),
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Set(r.ctx, key, data, 24*time.Hour).Err()
}

// GetUserPresence gets a user's presence
func (r *RedisClient) GetUserPresence(userID uuid.UUID) (*models.UserPresence, error) {
	key := fmt.Sprintf("presence:user:%s", userID.String())
	data, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return &models.UserPresence{
			UserID:   userID,
			Status:   "offline",
			LastSeen: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	var presence models.UserPresence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, err
	}

	return &presence, nil
}

// Typing Indicators

// SetTyping sets a user as typing in a conversation
func (r *RedisClient) SetTyping(conversationID, userID uuid.UUID) error {
	key := fmt.Sprintf("typing:%s", conversationID.String())
	return r.client.SAdd(r.ctx, key, userID.String()).Err()
}

// RemoveTyping removes a user from typing in a conversation
func (r *RedisClient) RemoveTyping(conversationID, userID uuid.UUID) error {
	key := fmt.Sprintf("typing:%s", conversationID.String())
	return r.client.SRem(r.ctx, key, userID.String()).Err()
}

// GetTypingUsers gets all users typing in a conversation
func (r *RedisClient) GetTypingUsers(conversationID uuid.UUID) ([]uuid.UUID, error) {
	key := fmt.Sprintf("typing:%s", conversationID.String())
	members, err := r.client.SMembers(r.ctx, key).Result()
	if err != nil {
		return nil, err
	}

	userIDs := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		userID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, nil
}

// Unread badge cache

// SetCachedUnreadTotal caches a user's unread badge total briefly so the
// conversation list does not hammer the count query.
func (r *RedisClient) SetCachedUnreadTotal(userID uuid.UUID, total int) error {
	key := fmt.Sprintf("unread:total:%s", userID.String())
	return r.client.Set(r.ctx, key, total, unreadBadgeTTL).Err()
}

// GetCachedUnreadTotal returns the cached badge total, or ok=false on a miss.
func (r *RedisClient) GetCachedUnreadTotal(userID uuid.UUID) (int, bool) {
	key := fmt.Sprintf("unread:total:%s", userID.String())
	data, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return 0, false
	}
	total, err := strconv.Atoi(data)
	if err != nil {
		return 0, false
	}
	return total, true
}

// InvalidateUnreadTotal drops the cached badge total after a send or read.
func (r *RedisClient) InvalidateUnreadTotal(userID uuid.UUID) error {
	key := fmt.Sprintf("unread:total:%s", userID.String())
	return r.client.Del(r.ctx, key).Err()
}

// Pub/Sub

// PublishMessage publishes a message event to the messages channel
func (r *RedisClient) PublishMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, channelMessages, data).Err()
}

// SubscribeToMessages subscribes to the messages channel
func (r *RedisClient) SubscribeToMessages() *redis.PubSub {
	return r.client.Subscribe(r.ctx, channelMessages)
}

// PublishConversation publishes a conversation change event
func (r *RedisClient) PublishConversation(event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, channelConversations, data).Err()
}

// SubscribeToConversations subscribes to conversation change events
func (r *RedisClient) SubscribeToConversations() *redis.PubSub {
	return r.client.Subscribe(r.ctx, channelConversations)
}

// PublishPresence publishes a presence update
func (r *RedisClient) PublishPresence(presence models.UserPresence) error {
	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, channelPresence, data).Err()
}

// SubscribeToPresence subscribes to presence updates
func (r *RedisClient) SubscribeToPresence() *redis.PubSub {
	return r.client.Subscribe(r.ctx, channelPresence)
}

// PublishTyping publishes a typing indicator
func (r *RedisClient) PublishTyping(typing models.TypingIndicator) error {
	data, err := json.Marshal(typing)
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, channelTyping, data).Err()
}

// SubscribeToTyping subscribes to typing indicators
func (r *RedisClient) SubscribeToTyping() *redis.PubSub {
	return r.client.Subscribe(r.ctx, channelTyping)
}

// GetClient returns the underlying Redis client
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

// AllowAction implements a Redis-backed token-bucket limiter per key (user+action).
// Returns true if the action is allowed, false if rate-limited.
func (r *RedisClient) AllowAction(userID uuid.UUID, action string, rate int, burst int) (bool, error) {
	key := fmt.Sprintf("rl:%s:%s", action, userID.String())
	// Lua script: manage tokens and last timestamp
	script := `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local vals = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(vals[1])
local last = tonumber(vals[2])
if tokens == nil then tokens = burst end
if last == nil then last = now end
local delta = math.max(0, now - last)
local new_tokens = math.min(burst, tokens + (delta * rate / 1000))
if new_tokens >= 1 then
	new_tokens = new_tokens - 1
	redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
	redis.call('PEXPIRE', key, 60000)
	return 1
else
	redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
	redis.call('PEXPIRE', key, 60000)
	return 0
end
`

	now := time.Now().UnixNano() / int64(time.Millisecond)
	res, err := r.client.Eval(r.ctx, script, []string{key}, rate, burst, now).Result()
	if err != nil {
		return false, err
	}
	// Eval returns int64 (1 or 0)
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case int:
		return v == 1, nil
	default:
		return false, fmt.Errorf("unexpected result from rate limiter: %T %v", res, res)
	}
}

// ChangeNotifier adapts the Redis client to the messaging service's change
// event hook: message events go to the messages channel, everything else to
// the conversations channel, so other processes (and this one's hub) can
// fan updates out to connected clients.
type ChangeNotifier struct {
	redis *RedisClient
}

func NewChangeNotifier(redis *RedisClient) *ChangeNotifier {
	return &ChangeNotifier{redis: redis}
}

func (n *ChangeNotifier) Notify(event messaging.ChangeEvent) {
	if n.redis == nil {
		return
	}

	// fresh state invalidates any cached badge totals
	for _, userID := range event.Participants {
		_ = n.redis.InvalidateUnreadTotal(userID)
	}

	switch event.Kind {
	case messaging.ChangeMessage:
		_ = n.redis.PublishMessage(models.WSMessage{
			Event:   models.EventMessageNew,
			Payload: event.Message,
		})
	case messaging.ChangeConversationDeleted:
		_ = n.redis.PublishConversation(models.WSMessage{
			Event: models.EventConversationDeleted,
			Payload: models.WSConversationPayload{
				ConversationID: event.ConversationID,
				Participants:   event.Participants,
			},
		})
	default:
		_ = n.redis.PublishConversation(models.WSMessage{
			Event: models.EventConversationUpdated,
			Payload: models.WSConversationPayload{
				ConversationID: event.ConversationID,
				Participants:   event.Participants,
			},
		})
	}
}
