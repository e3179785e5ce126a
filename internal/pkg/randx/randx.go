// Package randx generates unique identifiers for messages and receipts.
package randx

import "github.com/google/uuid"

// MessageID returns a UUID v4 string used as the stable id of a chat message.
// Clients deduplicate multi-device deliveries on this id.
func MessageID() string {
	return uuid.New().String()
}

// ReceiptID returns a UUID v4 string for a delivery/read receipt row.
func ReceiptID() string {
	return uuid.New().String()
}
