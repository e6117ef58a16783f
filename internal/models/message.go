package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes user-typed content from auto-generated ride
// lifecycle notices.
type MessageType string

const (
	MessageTypeText          MessageType = "TEXT"
	MessageTypeLocation      MessageType = "LOCATION"
	MessageTypeRideRequest   MessageType = "RIDE_REQUEST"
	MessageTypeRideAccepted  MessageType = "RIDE_ACCEPTED"
	MessageTypeRideCancelled MessageType = "RIDE_CANCELLED"
	MessageTypeRideStatus    MessageType = "RIDE_STATUS"
	MessageTypePickupArrived MessageType = "PICKUP_ARRIVED"
	MessageTypeRideStarted   MessageType = "RIDE_STARTED"
	MessageTypeRideCompleted MessageType = "RIDE_COMPLETED"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeLocation, MessageTypeRideRequest,
		MessageTypeRideAccepted, MessageTypeRideCancelled, MessageTypeRideStatus,
		MessageTypePickupArrived, MessageTypeRideStarted, MessageTypeRideCompleted:
		return true
	}
	return false
}

// RideStatusContent returns the canonical human-readable body for a ride
// lifecycle message of this type.
func (t MessageType) RideStatusContent() string {
	switch t {
	case MessageTypeRideRequest:
		return "Ride request sent"
	case MessageTypeRideAccepted:
		return "Ride request accepted"
	case MessageTypeRideCancelled:
		return "Ride has been cancelled"
	case MessageTypePickupArrived:
		return "Driver has arrived at pickup location"
	case MessageTypeRideStarted:
		return "Ride has started"
	case MessageTypeRideCompleted:
		return "Ride completed successfully"
	default:
		return "Ride status update"
	}
}

// Message is one unit of communication within a conversation. Immutable once
// written except for the delivery/read flags, which only ever flip forward:
// sent -> delivered -> read.
type Message struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	ConversationID uuid.UUID   `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id" db:"sender_id"`
	ReceiverID     uuid.UUID   `json:"receiver_id" db:"receiver_id"`
	Content        string      `json:"content" db:"content"`
	MessageType    MessageType `json:"message_type" db:"message_type"`
	RideID         *uuid.UUID  `json:"ride_id,omitempty" db:"ride_id"`
	IsRead         bool        `json:"is_read" db:"is_read"`
	IsDelivered    bool        `json:"is_delivered" db:"is_delivered"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`

	// Seq breaks ordering ties between messages with equal timestamps.
	Seq int64 `json:"-" db:"seq"`
}

// MessageWithSender joins a message with its sender's display identity.
type MessageWithSender struct {
	Message
	SenderName     string  `json:"sender_name" db:"sender_name"`
	SenderPhotoURL *string `json:"sender_photo_url,omitempty" db:"sender_photo_url"`
}

type SendMessageRequest struct {
	ConversationID uuid.UUID   `json:"conversation_id" binding:"required"`
	ReceiverID     uuid.UUID   `json:"receiver_id" binding:"required"`
	Content        string      `json:"content" binding:"required,max=10000"`
	MessageType    MessageType `json:"message_type,omitempty"`
	RideID         *uuid.UUID  `json:"ride_id,omitempty"`
}

type GetMessagesRequest struct {
	ConversationID uuid.UUID `form:"conversation_id" binding:"required"`
	Limit          int       `form:"limit"`
}
