/*
Package store is the durable persistence layer for conversations, messages and
receipts. The realtime core treats it as an external collaborator behind the
Store interface: the live websocket channel is a best-effort accelerant, this
package holds the source of truth.
*/
package store

import (
	"context"
	"time"
)

// Attachment describes one file attached to a message. The file body lives in
// object storage under Key; messages only carry the metadata.
type Attachment struct {
	Key      string `json:"fileKey"`
	Name     string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"fileSize"`
}

// Message is a persisted chat message. Immutable once created apart from the
// soft-delete flag, which only filters history reads.
type Message struct {
	ID             string       `json:"messageId"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	SenderName     string       `json:"senderName"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments"`
	SentAt         time.Time    `json:"timestamp"`
}

// Store is the persistence contract consumed by the realtime core.
type Store interface {
	// CreateMessage persists a new message and returns it with its assigned id
	// and timestamp.
	CreateMessage(ctx context.Context, conversationID, senderID, senderName, content string, attachments []Attachment) (*Message, error)

	// GetMessage returns the message with the given id, or ErrNotFound.
	GetMessage(ctx context.Context, messageID string) (*Message, error)

	// ListRecentMessages returns up to limit non-deleted messages of the
	// conversation, oldest first.
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// ListActiveParticipants returns the user ids of the conversation's
	// active members.
	ListActiveParticipants(ctx context.Context, conversationID string) ([]string, error)

	// CreateDeliveryReceipt records that a message was handed to a recipient,
	// creating the (message, recipient) receipt row if absent.
	CreateDeliveryReceipt(ctx context.Context, messageID, userID string, at time.Time) error

	// MarkRead stamps readAt on the (message, recipient) receipt row,
	// creating it if the delivery receipt never landed.
	MarkRead(ctx context.Context, messageID, userID string, at time.Time) error

	// TouchConversation updates the conversation's lastMessageAt marker.
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error
}
