/*
Package realtime is the live messaging and presence core: it keeps one duplex
websocket per device, routes chat events between conversation participants,
tracks who is online, propagates typing state, and queues events for users who
are temporarily disconnected.

This file defines the wire protocol: JSON text frames carrying one event each,
tagged by a type field.
*/
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"pitchchat/internal/app/store"
)

// Inbound event types. Dispatch is a closed set; anything else earns the
// sender an error event.
const (
	EventSendMessage      = "send_message"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventMarkRead         = "mark_read"
	EventJoinConversation = "join_conversation"
	EventGetOnlineUsers   = "get_online_users"
	EventPing             = "ping"
)

// Outbound event types.
const (
	EventConnected          = "connected"
	EventQueuedMessage      = "queued_message"
	EventMessageSent        = "message_sent"
	EventNewMessage         = "new_message"
	EventUserTyping         = "user_typing"
	EventMessageRead        = "message_read"
	EventConversationJoined = "conversation_joined"
	EventOnlineUsers        = "online_users"
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
	EventPong               = "pong"
	EventError              = "error"
)

// ClientEvent is the decoded inbound frame. RequestID, when present, is echoed
// on the matching acknowledgement so clients can correlate without blocking.
type ClientEvent struct {
	Type           string             `json:"type"`
	ConversationID string             `json:"conversationId,omitempty"`
	MessageID      string             `json:"messageId,omitempty"`
	Content        string             `json:"content,omitempty"`
	Attachments    []store.Attachment `json:"attachments,omitempty"`
	RecipientID    string             `json:"recipientId,omitempty"`
	RequestID      string             `json:"requestId,omitempty"`
}

// ConnectedEvent is the hello sent right after a successful handshake.
type ConnectedEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageSentEvent confirms persistence to the originating connection only.
type MessageSentEvent struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"requestId,omitempty"`
}

// NewMessageEvent carries a freshly persisted message to the other subscribers.
type NewMessageEvent struct {
	Type           string             `json:"type"`
	MessageID      string             `json:"messageId"`
	ConversationID string             `json:"conversationId"`
	SenderID       string             `json:"senderId"`
	SenderName     string             `json:"senderName"`
	Content        string             `json:"content"`
	Attachments    []store.Attachment `json:"attachments"`
	Timestamp      time.Time          `json:"timestamp"`
}

// UserTypingEvent propagates a typing flag to a conversation.
type UserTypingEvent struct {
	Type           string    `json:"type"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	ConversationID string    `json:"conversationId"`
	IsTyping       bool      `json:"isTyping"`
	Timestamp      time.Time `json:"timestamp"`
}

// MessageReadEvent tells a message's sender who read it and when.
type MessageReadEvent struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"messageId"`
	ReadBy     string    `json:"readBy"`
	ReadByName string    `json:"readByName"`
	ReadAt     time.Time `json:"readAt"`
}

// ConversationJoinedEvent returns recent history to a joining connection.
type ConversationJoinedEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Messages       []store.Message `json:"messages"`
	Timestamp      time.Time       `json:"timestamp"`
}

// OnlineUser is one entry of an online_users snapshot.
type OnlineUser struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	UserType string    `json:"userType"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// OnlineUsersEvent is a point-in-time snapshot, not a subscription.
type OnlineUsersEvent struct {
	Type  string       `json:"type"`
	Users []OnlineUser `json:"users"`
}

// PresenceEvent announces a user_online or user_offline transition.
// LastSeen is set only on the offline variant.
type PresenceEvent struct {
	Type     string     `json:"type"`
	UserID   string     `json:"userId"`
	Username string     `json:"username"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// PongEvent answers an application-level ping.
type PongEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
}

// ErrorEvent reports a failure to the originating connection.
type ErrorEvent struct {
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// marshalEvent encodes an outbound event for the wire.
func marshalEvent(event any) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbound event: %w", err)
	}
	return payload, nil
}

// wrapQueued rewrites an event held in the offline queue as a queued_message
// frame: all original fields survive, the original type moves to originalType,
// and queuedAt records when the event entered the queue.
func wrapQueued(original json.RawMessage, queuedAt time.Time) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(original, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode queued event: %w", err)
	}

	if originalType, ok := fields["type"]; ok {
		fields["originalType"] = originalType
	}
	fields["type"] = EventQueuedMessage
	fields["queuedAt"] = queuedAt

	return json.Marshal(fields)
}
