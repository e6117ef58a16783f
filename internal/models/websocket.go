package models

import "github.com/google/uuid"

// WebSocket event types
const (
	EventMessageNew          = "message.new"
	EventMessageSend         = "message.send"
	EventMessageRead         = "message.read"
	EventMessageDelivered    = "message.delivered"
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
	EventTypingStart         = "typing.start"
	EventTypingStop          = "typing.stop"
	EventPresenceUpdate      = "presence.update"
	EventError               = "error"
)

type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type WSMessageSendPayload struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	ReceiverID     uuid.UUID   `json:"receiver_id"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type,omitempty"`
	RideID         *uuid.UUID  `json:"ride_id,omitempty"`
}

type WSMessageReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type WSTypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type TypingIndicator struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
}

type WSConversationPayload struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	Participants   []uuid.UUID `json:"participants"`
}

type WSDeliveredPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
