package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/models"
)

// Resolver guarantees at most one active conversation per unordered user
// pair. All conversation creation funnels through Resolve.
type Resolver struct {
	conversations ConversationStore

	now   func() time.Time
	newID func() uuid.UUID
}

func NewResolver(conversations ConversationStore) *Resolver {
	return &Resolver{
		conversations: conversations,
		now:           time.Now,
		newID:         uuid.New,
	}
}

// Resolve finds the active conversation for the pair, creating it on first
// contact. An existing conversation is returned unchanged: the ride id that
// tagged it at creation wins over whatever is supplied later. Concurrent
// resolves for the same pair are serialized by the store's pair constraint;
// the loser re-reads and returns the winner's row.
func (r *Resolver) Resolve(ctx context.Context, userA, userB uuid.UUID, rideID *uuid.UUID) (*models.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfConversation
	}

	conv, err := r.conversations.GetByPair(ctx, userA, userB)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	now := r.now()
	conv = &models.Conversation{
		ID:            r.newID(),
		UserA:         userA,
		UserB:         userB,
		RideID:        rideID,
		LastMessageAt: now,
		UnreadCount:   0,
		IsActive:      true,
		CreatedAt:     now,
	}

	err = r.conversations.Create(ctx, conv)
	if errors.Is(err, ErrDuplicatePair) {
		// Lost the creation race; the winner's row is the conversation.
		return r.conversations.GetByPair(ctx, userA, userB)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}
