package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/models"
)

var (
	// ErrNotFound is returned by store lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePair is returned by ConversationStore.Create when another
	// active conversation already holds the same participant pair. The
	// resolver converts it into a re-read of the winning row.
	ErrDuplicatePair = errors.New("active conversation already exists for pair")

	// ErrSelfConversation rejects a conversation between a user and themselves.
	ErrSelfConversation = errors.New("conversation requires two distinct users")
)

// ConversationStore is the persistence contract for conversation rows.
// Implementations must enforce pair uniqueness with a store-level constraint,
// not a check-then-act, so concurrent creators race safely.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetByPair(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error)
	GetByRide(ctx context.Context, rideID uuid.UUID) (*models.Conversation, error)
	GetForUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationWithParticipant, error)
	UpdateLastMessage(ctx context.Context, id uuid.UUID, text string, at time.Time, senderID uuid.UUID) error
	IncrementUnread(ctx context.Context, id uuid.UUID) error
	ResetUnread(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageStore is the persistence contract for the time-ordered message log.
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	CreateBatch(ctx context.Context, msgs []*models.Message) error
	ForConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	RecentForConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.MessageWithSender, error)
	LastForConversation(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)
	UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
	TotalUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error)
	MarkDelivered(ctx context.Context, messageID uuid.UUID) error
	DeleteForConversation(ctx context.Context, conversationID uuid.UUID) error
	ForRide(ctx context.Context, rideID uuid.UUID) ([]models.Message, error)
}

// SendApplier is an optional upgrade a MessageStore can offer: apply the
// whole send sequence (append message, update conversation summary, bump
// unread) in a single transaction. Stores that cannot leave the service to
// run the three point updates in order, tolerating the brief window where
// the message exists before the summary catches up.
type SendApplier interface {
	ApplySend(ctx context.Context, msg *models.Message) error
}
