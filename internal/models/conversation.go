package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a messaging thread between exactly two users, optionally
// tagged with the ride that started it. UserA/UserB form an unordered pair:
// (A,B) and (B,A) describe the same thread.
type Conversation struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	UserA               uuid.UUID  `json:"user_a" db:"user_a"`
	UserB               uuid.UUID  `json:"user_b" db:"user_b"`
	RideID              *uuid.UUID `json:"ride_id,omitempty" db:"ride_id"`
	LastMessageText     *string    `json:"last_message_text,omitempty" db:"last_message_text"`
	LastMessageAt       time.Time  `json:"last_message_at" db:"last_message_at"`
	LastMessageSenderID *uuid.UUID `json:"last_message_sender_id,omitempty" db:"last_message_sender_id"`
	UnreadCount         int        `json:"unread_count" db:"unread_count"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// PairKey returns the canonical storage key for the unordered participant
// pair. The unique index on this key is what keeps a pair down to a single
// active conversation.
func (c *Conversation) PairKey() string {
	return PairKey(c.UserA, c.UserB)
}

// PairKey canonicalizes an unordered user pair as "min:max" of the two ids.
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as < bs {
		return as + ":" + bs
	}
	return bs + ":" + as
}

// OtherParticipant returns the participant that is not the given user.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// HasParticipant reports whether the user is one of the two participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserA == userID || c.UserB == userID
}

// ConversationWithParticipant joins a conversation with the display identity
// of the other participant, for the conversation list screen.
type ConversationWithParticipant struct {
	Conversation
	ParticipantID       uuid.UUID `json:"participant_id" db:"participant_id"`
	ParticipantName     string    `json:"participant_name" db:"participant_name"`
	ParticipantPhotoURL *string   `json:"participant_photo_url,omitempty" db:"participant_photo_url"`
}

type CreateConversationRequest struct {
	UserID uuid.UUID  `json:"user_id" binding:"required"`
	RideID *uuid.UUID `json:"ride_id,omitempty"`
}
