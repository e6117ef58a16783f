package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/models"
)

// ChangeEvent describes a mutation worth re-emitting live queries for.
type ChangeEvent struct {
	Kind           ChangeKind
	ConversationID uuid.UUID
	Participants   []uuid.UUID
	Message        *models.Message
}

type ChangeKind string

const (
	ChangeMessage             ChangeKind = "message"
	ChangeConversation        ChangeKind = "conversation"
	ChangeConversationDeleted ChangeKind = "conversation_deleted"
)

// Notifier receives change events after a mutation commits. Implementations
// must not block; the service calls them inline.
type Notifier interface {
	Notify(event ChangeEvent)
}

// MultiNotifier fans a change event out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(event ChangeEvent) {
	for _, n := range m {
		n.Notify(event)
	}
}

// Service orchestrates sends, reads, unread aggregation, ride status
// messages and conversation lifecycle over the two stores.
type Service struct {
	conversations ConversationStore
	messages      MessageStore
	resolver      *Resolver
	notifier      Notifier

	now   func() time.Time
	newID func() uuid.UUID
}

func NewService(conversations ConversationStore, messages MessageStore, notifier Notifier) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		resolver:      NewResolver(conversations),
		notifier:      notifier,
		now:           time.Now,
		newID:         uuid.New,
	}
}

// SetNotifier replaces the change notifier. Call it during startup wiring,
// before the service starts taking requests.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// GetOrCreateConversation resolves the single active conversation for the
// pair, creating it on first contact.
func (s *Service) GetOrCreateConversation(ctx context.Context, userA, userB uuid.UUID, rideID *uuid.UUID) (*models.Conversation, error) {
	conv, err := s.resolver.Resolve(ctx, userA, userB, rideID)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// SendMessage appends a message and folds it into the owning conversation's
// summary: last-message fields take the new message's values and the unread
// counter goes up by exactly one. The counter is a single per-conversation
// count, not tracked per participant; that matches the product's badge
// behavior even though it over-counts for the sender.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, receiverID uuid.UUID, content string, messageType models.MessageType, rideID *uuid.UUID) (*models.Message, error) {
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	if !messageType.Valid() {
		return nil, fmt.Errorf("unknown message type %q", messageType)
	}

	msg := &models.Message{
		ID:             s.newID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		MessageType:    messageType,
		RideID:         rideID,
		IsRead:         false,
		IsDelivered:    false,
		CreatedAt:      s.now(),
	}

	if applier, ok := s.messages.(SendApplier); ok {
		if err := applier.ApplySend(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to send message: %w", err)
		}
	} else {
		// Point updates in order: the message lands first, the summary
		// catches up. Observers tolerate the window in between.
		if err := s.messages.Create(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to send message: %w", err)
		}
		if err := s.conversations.UpdateLastMessage(ctx, conversationID, content, msg.CreatedAt, senderID); err != nil {
			return nil, fmt.Errorf("failed to update conversation summary: %w", err)
		}
		if err := s.conversations.IncrementUnread(ctx, conversationID); err != nil {
			return nil, fmt.Errorf("failed to increment unread count: %w", err)
		}
	}

	s.notify(ctx, ChangeMessage, conversationID, msg)
	return msg, nil
}

// SendRideStatusMessage sends the canonical notice for a ride lifecycle
// transition into the conversation.
func (s *Service) SendRideStatusMessage(ctx context.Context, conversationID, senderID, receiverID uuid.UUID, statusType models.MessageType, rideID uuid.UUID) (*models.Message, error) {
	content := statusType.RideStatusContent()
	return s.SendMessage(ctx, conversationID, senderID, receiverID, content, statusType, &rideID)
}

// MarkRead flips every unread message addressed to the user in the
// conversation and resets the conversation counter to zero. The reset is
// unconditional rather than decremented by the number of rows touched,
// mirroring the counter's sender-agnostic semantics. Calling it again is a
// no-op, as is calling it for a conversation that no longer exists.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	if _, err := s.messages.MarkConversationRead(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	err := s.conversations.ResetUnread(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err == nil {
		s.notifyConversation(ChangeConversation, conv, nil)
	}
	return nil
}

// UnreadTotalFor returns the number of unread messages addressed to the user
// across all conversations. A failing query yields zero: the badge count is
// cosmetic and must never take down the screen that renders it.
func (s *Service) UnreadTotalFor(ctx context.Context, userID uuid.UUID) int {
	total, err := s.messages.TotalUnread(ctx, userID)
	if err != nil {
		log.Printf("unread total query failed for %s: %v", userID, err)
		return 0
	}
	return total
}

// DeleteConversation removes the message log first and the conversation row
// second, so observers never see a conversation whose messages are gone.
func (s *Service) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	if err := s.messages.DeleteForConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	s.notifyConversation(ChangeConversationDeleted, conv, nil)
	return nil
}

// ArchiveConversation soft-deactivates the conversation. Archived threads
// drop out of the per-user list but stay reachable by id.
func (s *Service) ArchiveConversation(ctx context.Context, conversationID uuid.UUID) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	if err := s.conversations.Deactivate(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to archive conversation: %w", err)
	}

	s.notifyConversation(ChangeConversation, conv, nil)
	return nil
}

// MarkDelivered records transport-layer delivery of a message. Delivery only
// moves forward; marking an already delivered message again is harmless.
func (s *Service) MarkDelivered(ctx context.Context, messageID uuid.UUID) error {
	if err := s.messages.MarkDelivered(ctx, messageID); err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	return nil
}

// ConversationsFor lists the user's active conversations, most recently
// touched first, each joined with the other participant's display identity.
func (s *Service) ConversationsFor(ctx context.Context, userID uuid.UUID) ([]models.ConversationWithParticipant, error) {
	return s.conversations.GetForUser(ctx, userID)
}

// ConversationByID fetches a conversation by id, archived ones included.
func (s *Service) ConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.conversations.GetByID(ctx, id)
}

// ConversationForRide fetches the active conversation tagged with the ride.
func (s *Service) ConversationForRide(ctx context.Context, rideID uuid.UUID) (*models.Conversation, error) {
	return s.conversations.GetByRide(ctx, rideID)
}

// Messages returns the full ascending message log for a conversation.
func (s *Service) Messages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return s.messages.ForConversation(ctx, conversationID)
}

// RecentMessages returns a bounded recent window of the conversation joined
// with sender identities.
func (s *Service) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.MessageWithSender, error) {
	return s.messages.RecentForConversation(ctx, conversationID, limit)
}

// MessagesForRide returns every message tagged with the ride.
func (s *Service) MessagesForRide(ctx context.Context, rideID uuid.UUID) ([]models.Message, error) {
	return s.messages.ForRide(ctx, rideID)
}

// LastMessage returns the most recent message in the conversation.
func (s *Service) LastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	return s.messages.LastForConversation(ctx, conversationID)
}

// SearchMessages is a stub; full-text search is not part of this core.
func (s *Service) SearchMessages(ctx context.Context, userID uuid.UUID, query string) ([]models.MessageWithSender, error) {
	return []models.MessageWithSender{}, nil
}

func (s *Service) notify(ctx context.Context, kind ChangeKind, conversationID uuid.UUID, msg *models.Message) {
	if s.notifier == nil {
		return
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return
	}
	s.notifyConversation(kind, conv, msg)
}

func (s *Service) notifyConversation(kind ChangeKind, conv *models.Conversation, msg *models.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ChangeEvent{
		Kind:           kind,
		ConversationID: conv.ID,
		Participants:   []uuid.UUID{conv.UserA, conv.UserB},
		Message:        msg,
	})
}
