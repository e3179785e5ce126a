package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"pitchchat/internal/pkg/logx"
	"pitchchat/internal/pkg/randx"
)

// postgresStore implements Store on top of a pgx connection pool.
type postgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore wraps the given pool in a Store.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{
		pool:   pool,
		logger: logx.Logger().With().Str("component", "Store").Logger(),
	}
}

func (s *postgresStore) CreateMessage(ctx context.Context, conversationID, senderID, senderName, content string, attachments []Attachment) (*Message, error) {
	msg := &Message{
		ID:             randx.MessageID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Content:        content,
		Attachments:    attachments,
		SentAt:         time.Now().UTC(),
	}
	if msg.Attachments == nil {
		msg.Attachments = []Attachment{}
	}

	attachmentsJSON, err := json.Marshal(msg.Attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_name, content, attachments, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.SenderName, msg.Content, attachmentsJSON, msg.SentAt,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to insert message.")
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	return msg, nil
}

func (s *postgresStore) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, sender_name, content, attachments, sent_at
		FROM messages
		WHERE id = $1 AND NOT is_deleted`,
		messageID,
	)

	var msg Message
	var attachmentsJSON []byte

	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderName, &msg.Content, &attachmentsJSON, &msg.SentAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load message %s: %w", messageID, err)
	}

	if err := json.Unmarshal(attachmentsJSON, &msg.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments for message %s: %w", messageID, err)
	}

	return &msg, nil
}

func (s *postgresStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	// The subquery grabs the newest rows, the outer ORDER BY restores
	// chronological order for the client.
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, sender_name, content, attachments, sent_at
		FROM (
			SELECT id, conversation_id, sender_id, sender_name, content, attachments, sent_at
			FROM messages
			WHERE conversation_id = $1 AND NOT is_deleted
			ORDER BY sent_at DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for conversation %s: %w", conversationID, err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		var attachmentsJSON []byte

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderName, &msg.Content, &attachmentsJSON, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if err := json.Unmarshal(attachmentsJSON, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments for message %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *postgresStore) ListActiveParticipants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id
		FROM conversation_participants
		WHERE conversation_id = $1 AND is_active`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for conversation %s: %w", conversationID, err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, rows.Err()
}

func (s *postgresStore) CreateDeliveryReceipt(ctx context.Context, messageID, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_receipts (id, message_id, user_id, delivered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET delivered_at = COALESCE(message_receipts.delivered_at, EXCLUDED.delivered_at)`,
		randx.ReceiptID(), messageID, userID, at,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("message_id", messageID).Str("user_id", userID).Msg("Failed to upsert delivery receipt.")
		return fmt.Errorf("failed to upsert delivery receipt: %w", err)
	}
	return nil
}

func (s *postgresStore) MarkRead(ctx context.Context, messageID, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_receipts (id, message_id, user_id, delivered_at, read_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET read_at = EXCLUDED.read_at`,
		randx.ReceiptID(), messageID, userID, at,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("message_id", messageID).Str("user_id", userID).Msg("Failed to mark receipt read.")
		return fmt.Errorf("failed to mark receipt read: %w", err)
	}
	return nil
}

func (s *postgresStore) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET last_message_at = $2 WHERE id = $1`,
		conversationID, at,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to touch conversation.")
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}
