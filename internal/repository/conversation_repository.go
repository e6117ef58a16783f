package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ridelink/backend/internal/database"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

// pairConstraint is the unique partial index serializing conversation
// creation per unordered user pair.
const pairConstraint = "idx_conversations_pair_active"

type ConversationRepository struct {
	db *database.DB
}

func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation row, replacing an existing row with the same
// id. A clash on the active-pair index surfaces as ErrDuplicatePair so the
// caller can re-read the winning row instead of erroring.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_a, user_b, pair_key, ride_id, last_message_text, last_message_at, last_message_sender_id, unread_count, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			ride_id = EXCLUDED.ride_id,
			last_message_text = EXCLUDED.last_message_text,
			last_message_at = EXCLUDED.last_message_at,
			last_message_sender_id = EXCLUDED.last_message_sender_id,
			unread_count = EXCLUDED.unread_count,
			is_active = EXCLUDED.is_active
	`

	_, err := r.db.ExecContext(ctx, query,
		conv.ID,
		conv.UserA,
		conv.UserB,
		conv.PairKey(),
		conv.RideID,
		conv.LastMessageText,
		conv.LastMessageAt,
		conv.LastMessageSenderID,
		conv.UnreadCount,
		conv.IsActive,
		conv.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == pairConstraint {
			return messaging.ErrDuplicatePair
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

const conversationColumns = `id, user_a, user_b, ride_id, last_message_text, last_message_at, last_message_sender_id, unread_count, is_active, created_at`

func scanConversation(row *sql.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := row.Scan(
		&conv.ID,
		&conv.UserA,
		&conv.UserB,
		&conv.RideID,
		&conv.LastMessageText,
		&conv.LastMessageAt,
		&conv.LastMessageSenderID,
		&conv.UnreadCount,
		&conv.IsActive,
		&conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, messaging.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// GetByID retrieves a conversation by id, archived rows included.
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRowContext(ctx, query, id))
}

// GetByPair retrieves the active conversation for an unordered user pair.
func (r *ConversationRepository) GetByPair(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE pair_key = $1 AND is_active LIMIT 1`
	return scanConversation(r.db.QueryRowContext(ctx, query, models.PairKey(userA, userB)))
}

// GetByRide retrieves the active conversation tagged with a ride.
func (r *ConversationRepository) GetByRide(ctx context.Context, rideID uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE ride_id = $1 AND is_active LIMIT 1`
	return scanConversation(r.db.QueryRowContext(ctx, query, rideID))
}

// GetForUser retrieves the user's active conversations ordered by last
// activity, each joined with the other participant's display identity.
func (r *ConversationRepository) GetForUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationWithParticipant, error) {
	query := `
		SELECT c.id, c.user_a, c.user_b, c.ride_id, c.last_message_text, c.last_message_at, c.last_message_sender_id, c.unread_count, c.is_active, c.created_at,
		       u.id, u.display_name, u.photo_url
		FROM conversations c
		INNER JOIN users u ON u.id = CASE WHEN c.user_a = $1 THEN c.user_b ELSE c.user_a END
		WHERE (c.user_a = $1 OR c.user_b = $1) AND c.is_active
		ORDER BY c.last_message_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.ConversationWithParticipant{}
	for rows.Next() {
		var conv models.ConversationWithParticipant
		err := rows.Scan(
			&conv.ID,
			&conv.UserA,
			&conv.UserB,
			&conv.RideID,
			&conv.LastMessageText,
			&conv.LastMessageAt,
			&conv.LastMessageSenderID,
			&conv.UnreadCount,
			&conv.IsActive,
			&conv.CreatedAt,
			&conv.ParticipantID,
			&conv.ParticipantName,
			&conv.ParticipantPhotoURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// UpdateLastMessage sets the three summary fields in one point update. The
// timestamp never moves backwards.
func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id uuid.UUID, text string, at time.Time, senderID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET last_message_text = $1,
		    last_message_at = GREATEST(last_message_at, $2),
		    last_message_sender_id = $3
		WHERE id = $4
	`
	return r.pointUpdate(ctx, query, text, at, senderID, id)
}

// IncrementUnread bumps the conversation counter by one.
func (r *ConversationRepository) IncrementUnread(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE conversations SET unread_count = unread_count + 1 WHERE id = $1`
	return r.pointUpdate(ctx, query, id)
}

// ResetUnread zeroes the conversation counter.
func (r *ConversationRepository) ResetUnread(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE conversations SET unread_count = 0 WHERE id = $1`
	return r.pointUpdate(ctx, query, id)
}

// Deactivate soft-deletes the conversation. The row stays reachable by id.
func (r *ConversationRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE conversations SET is_active = false WHERE id = $1`
	return r.pointUpdate(ctx, query, id)
}

// Delete hard-deletes the conversation row.
func (r *ConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM conversations WHERE id = $1`
	return r.pointUpdate(ctx, query, id)
}

func (r *ConversationRepository) pointUpdate(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return messaging.ErrNotFound
	}

	return nil
}
