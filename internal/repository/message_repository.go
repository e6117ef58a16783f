package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/database"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, message_type, ride_id, is_read, is_delivered, created_at, seq`

// Create appends one message to the log.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, message_type, ride_id, is_read, is_delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`

	err := r.db.QueryRowContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.MessageType,
		msg.RideID,
		msg.IsRead,
		msg.IsDelivered,
		msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// CreateBatch appends several messages in one transaction.
func (r *MessageRepository) CreateBatch(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, message_type, ride_id, is_read, is_delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`
	for _, msg := range msgs {
		if err := tx.QueryRowContext(ctx, query,
			msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID,
			msg.Content, msg.MessageType, msg.RideID,
			msg.IsRead, msg.IsDelivered, msg.CreatedAt,
		).Scan(&msg.Seq); err != nil {
			return fmt.Errorf("failed to create message batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message batch: %w", err)
	}
	return nil
}

// ApplySend performs the full send sequence in one transaction: append the
// message, refresh the conversation summary, bump the unread counter.
func (r *MessageRepository) ApplySend(ctx context.Context, msg *models.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, message_type, ride_id, is_read, is_delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`
	if err := tx.QueryRowContext(ctx, insert,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID,
		msg.Content, msg.MessageType, msg.RideID,
		msg.IsRead, msg.IsDelivered, msg.CreatedAt,
	).Scan(&msg.Seq); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	summary := `
		UPDATE conversations
		SET last_message_text = $1,
		    last_message_at = GREATEST(last_message_at, $2),
		    last_message_sender_id = $3,
		    unread_count = unread_count + 1
		WHERE id = $4
	`
	result, err := tx.ExecContext(ctx, summary, msg.Content, msg.CreatedAt, msg.SenderID, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation summary: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return messaging.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit send: %w", err)
	}
	return nil
}

// ForConversation retrieves the full message log, ascending by timestamp
// with insertion order breaking ties.
func (r *MessageRepository) ForConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// RecentForConversation retrieves the most recent window of the log joined
// with sender identities, reordered ascending for display. A non-positive
// limit disables the window.
func (r *MessageRepository) RecentForConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.MessageWithSender, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content, m.message_type, m.ride_id, m.is_read, m.is_delivered, m.created_at, m.seq,
		       u.display_name, u.photo_url
		FROM messages m
		INNER JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC, m.seq DESC
	`
	args := []interface{}{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.MessageWithSender{}
	for rows.Next() {
		var msg models.MessageWithSender
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.MessageType,
			&msg.RideID,
			&msg.IsRead,
			&msg.IsDelivered,
			&msg.CreatedAt,
			&msg.Seq,
			&msg.SenderName,
			&msg.SenderPhotoURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// query runs newest-first to bound the window; flip back to ascending
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// LastForConversation retrieves the single most recent message.
func (r *MessageRepository) LastForConversation(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`

	msg := &models.Message{}
	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID,
		&msg.Content, &msg.MessageType, &msg.RideID,
		&msg.IsRead, &msg.IsDelivered, &msg.CreatedAt, &msg.Seq,
	)
	if err == sql.ErrNoRows {
		return nil, messaging.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last message: %w", err)
	}

	return msg, nil
}

// UnreadCount counts unread messages addressed to the user within one
// conversation.
func (r *MessageRepository) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1 AND receiver_id = $2 AND NOT is_read
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return count, nil
}

// TotalUnread counts unread messages addressed to the user across all
// conversations.
func (r *MessageRepository) TotalUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND NOT is_read
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get total unread count: %w", err)
	}
	return count, nil
}

// MarkConversationRead flips every unread message addressed to the receiver
// in the conversation and reports how many rows changed.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	query := `
		UPDATE messages
		SET is_read = true
		WHERE conversation_id = $1 AND receiver_id = $2 AND NOT is_read
	`

	result, err := r.db.ExecContext(ctx, query, conversationID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// MarkDelivered records transport delivery of one message.
func (r *MessageRepository) MarkDelivered(ctx context.Context, messageID uuid.UUID) error {
	query := `UPDATE messages SET is_delivered = true WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, messageID); err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	return nil
}

// DeleteForConversation removes the conversation's entire message log.
func (r *MessageRepository) DeleteForConversation(ctx context.Context, conversationID uuid.UUID) error {
	query := `DELETE FROM messages WHERE conversation_id = $1`

	if _, err := r.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}

// ForRide retrieves every message tagged with the ride, ascending.
func (r *MessageRepository) ForRide(ctx context.Context, rideID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ride_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ride messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID,
			&msg.Content, &msg.MessageType, &msg.RideID,
			&msg.IsRead, &msg.IsDelivered, &msg.CreatedAt, &msg.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
