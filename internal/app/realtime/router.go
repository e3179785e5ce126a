package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pitchchat/internal/app/store"
	"pitchchat/internal/pkg/errs"
	"pitchchat/internal/pkg/logx"
)

// RecentMessagesLimit is how much history join_conversation returns.
const RecentMessagesLimit = 50

// Router dispatches inbound client events against the shared realtime state.
// Each event runs to completion on its connection's read goroutine, so a
// single sender's messages are processed and broadcast in arrival order.
// Persistence calls are the only blocking operations, and a handler never
// acknowledges or broadcasts until they resolve: nothing failed ever reaches
// a subscriber.
type Router struct {
	store    store.Store
	registry *Registry
	queue    *OfflineQueue
	subs     *SubscriptionIndex
	typing   *TypingTracker

	logger zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewRouter wires the router to its sub-components.
func NewRouter(st store.Store, registry *Registry, queue *OfflineQueue, subs *SubscriptionIndex, typing *TypingTracker) *Router {
	return &Router{
		store:    st,
		registry: registry,
		queue:    queue,
		subs:     subs,
		typing:   typing,
		logger:   logx.Logger().With().Str("component", "Router").Logger(),
		now:      time.Now,
	}
}

// Dispatch decodes one inbound frame and runs the matching handler. The event
// set is closed; unknown types earn the sender an error event and nothing else.
func (rt *Router) Dispatch(ctx context.Context, c *Client, frame []byte) {
	var event ClientEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		rt.logger.Warn().Err(err).Str("user_id", c.identity.UserID).Msg("Client sent invalid JSON frame.")
		rt.sendError(c, errs.ErrInvalidJSONFormat, "")
		return
	}

	switch event.Type {
	case EventSendMessage:
		rt.handleSendMessage(ctx, c, event)

	case EventTypingStart:
		rt.handleTyping(c, event, true)

	case EventTypingStop:
		rt.handleTyping(c, event, false)

	case EventMarkRead:
		rt.handleMarkRead(ctx, c, event)

	case EventJoinConversation:
		rt.handleJoinConversation(ctx, c, event)

	case EventGetOnlineUsers:
		rt.handleGetOnlineUsers(c, event)

	case EventPing:
		rt.handlePing(c)

	default:
		rt.logger.Warn().
			Str("user_id", c.identity.UserID).
			Str("event_type", event.Type).
			Msg("Client sent unsupported event type.")
		rt.sendError(c, errs.ErrUnsupportedEventType, event.RequestID)
	}
}

// handleSendMessage validates, persists, confirms to the sender, broadcasts
// to the other subscribers, and records delivery receipts, in that order.
func (rt *Router) handleSendMessage(ctx context.Context, c *Client, event ClientEvent) {
	if event.ConversationID == "" {
		rt.sendError(c, errs.ErrConversationRequired, event.RequestID)
		return
	}
	if event.Content == "" {
		rt.sendError(c, errs.ErrContentRequired, event.RequestID)
		return
	}
	if len(event.Content) > MaxContentBytes {
		rt.sendError(c, errs.ErrMessageContentTooLong, event.RequestID)
		return
	}
	if customErr := validateAttachments(event.ConversationID, event.Attachments); customErr != nil {
		rt.sendErrorCustom(c, customErr, event.RequestID)
		return
	}

	msg, err := rt.store.CreateMessage(ctx, event.ConversationID, c.identity.UserID, c.identity.Username, event.Content, event.Attachments)
	if err != nil {
		rt.logger.Error().Err(err).
			Str("user_id", c.identity.UserID).
			Str("conversation_id", event.ConversationID).
			Msg("Failed to persist message.")
		rt.sendError(c, errs.ErrPersistenceFailed, event.RequestID)
		return
	}

	// Confirmation goes to the originating connection only, not to the
	// sender's other devices; those receive nothing for their own send.
	c.sendEvent(MessageSentEvent{
		Type:           EventMessageSent,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Timestamp:      msg.SentAt,
		RequestID:      event.RequestID,
	})

	payload, err := marshalEvent(NewMessageEvent{
		Type:           EventNewMessage,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		Content:        msg.Content,
		Attachments:    msg.Attachments,
		Timestamp:      msg.SentAt,
	})
	if err != nil {
		rt.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to marshal new_message event.")
		return
	}

	rt.subs.Broadcast(msg.ConversationID, payload, msg.SenderID)

	if err := rt.store.TouchConversation(ctx, msg.ConversationID, msg.SentAt); err != nil {
		rt.logger.Error().Err(err).Str("conversation_id", msg.ConversationID).Msg("Failed to touch conversation.")
	}

	participants, err := rt.store.ListActiveParticipants(ctx, msg.ConversationID)
	if err != nil {
		rt.logger.Error().Err(err).Str("conversation_id", msg.ConversationID).Msg("Failed to list participants for receipts.")
		return
	}

	for _, userID := range participants {
		if userID == msg.SenderID {
			continue
		}
		if err := rt.store.CreateDeliveryReceipt(ctx, msg.ID, userID, msg.SentAt); err != nil {
			rt.logger.Error().Err(err).
				Str("message_id", msg.ID).
				Str("user_id", userID).
				Msg("Failed to create delivery receipt.")
		}
	}
}

// handleTyping updates the typing flag and fans the change out to the
// conversation, excluding the typist.
func (rt *Router) handleTyping(c *Client, event ClientEvent, isTyping bool) {
	if event.ConversationID == "" {
		rt.sendError(c, errs.ErrConversationRequired, event.RequestID)
		return
	}

	rt.typing.Set(event.ConversationID, c.identity.UserID, isTyping)

	payload, err := marshalEvent(UserTypingEvent{
		Type:           EventUserTyping,
		UserID:         c.identity.UserID,
		Username:       c.identity.Username,
		ConversationID: event.ConversationID,
		IsTyping:       isTyping,
		Timestamp:      rt.now().UTC(),
	})
	if err != nil {
		rt.logger.Error().Err(err).Msg("Failed to marshal user_typing event.")
		return
	}

	rt.subs.Broadcast(event.ConversationID, payload, c.identity.UserID)
}

// handleMarkRead stamps the reader's receipt and notifies the message's
// sender, queueing the notification if the sender is offline.
func (rt *Router) handleMarkRead(ctx context.Context, c *Client, event ClientEvent) {
	if event.MessageID == "" {
		rt.sendError(c, errs.ErrMessageRequired, event.RequestID)
		return
	}

	msg, err := rt.store.GetMessage(ctx, event.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rt.sendError(c, errs.ErrMessageNotFound, event.RequestID)
			return
		}
		rt.logger.Error().Err(err).Str("message_id", event.MessageID).Msg("Failed to load message for mark_read.")
		rt.sendError(c, errs.ErrPersistenceFailed, event.RequestID)
		return
	}

	readAt := rt.now().UTC()

	if err := rt.store.MarkRead(ctx, msg.ID, c.identity.UserID, readAt); err != nil {
		rt.logger.Error().Err(err).
			Str("message_id", msg.ID).
			Str("user_id", c.identity.UserID).
			Msg("Failed to mark message read.")
		rt.sendError(c, errs.ErrPersistenceFailed, event.RequestID)
		return
	}

	payload, err := marshalEvent(MessageReadEvent{
		Type:       EventMessageRead,
		MessageID:  msg.ID,
		ReadBy:     c.identity.UserID,
		ReadByName: c.identity.Username,
		ReadAt:     readAt,
	})
	if err != nil {
		rt.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to marshal message_read event.")
		return
	}

	rt.sendOrQueue(msg.SenderID, payload)
}

// handleJoinConversation subscribes the user and returns recent history to
// the requesting connection only.
func (rt *Router) handleJoinConversation(ctx context.Context, c *Client, event ClientEvent) {
	if event.ConversationID == "" {
		rt.sendError(c, errs.ErrConversationRequired, event.RequestID)
		return
	}

	rt.subs.Join(event.ConversationID, c.identity.UserID)

	messages, err := rt.store.ListRecentMessages(ctx, event.ConversationID, RecentMessagesLimit)
	if err != nil {
		rt.logger.Error().Err(err).
			Str("conversation_id", event.ConversationID).
			Msg("Failed to load recent messages.")
		rt.sendError(c, errs.ErrPersistenceFailed, event.RequestID)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	c.sendEvent(ConversationJoinedEvent{
		Type:           EventConversationJoined,
		ConversationID: event.ConversationID,
		Messages:       messages,
		Timestamp:      rt.now().UTC(),
	})
}

// handleGetOnlineUsers answers with a point-in-time snapshot of everyone else
// currently connected.
func (rt *Router) handleGetOnlineUsers(c *Client, _ ClientEvent) {
	identities := rt.registry.Snapshot(c.identity.UserID)

	now := rt.now().UTC()
	users := make([]OnlineUser, 0, len(identities))
	for _, ident := range identities {
		users = append(users, OnlineUser{
			UserID:   ident.UserID,
			Username: ident.Username,
			UserType: ident.UserType,
			IsOnline: true,
			LastSeen: now,
		})
	}

	c.sendEvent(OnlineUsersEvent{
		Type:  EventOnlineUsers,
		Users: users,
	})
}

// handlePing answers liveness probes; no other component is touched.
func (rt *Router) handlePing(c *Client) {
	c.sendEvent(PongEvent{
		Type:      EventPong,
		Timestamp: rt.now().UTC(),
		UserID:    c.identity.UserID,
	})
}

// sendOrQueue delivers a directed event live, falling back to the user's
// offline queue when no connection takes it.
func (rt *Router) sendOrQueue(userID string, payload []byte) {
	if !rt.registry.SendToUser(userID, payload) {
		rt.queue.Enqueue(userID, payload)
	}
}

// sendError emits a single error event to the originating connection.
func (rt *Router) sendError(c *Client, code int, requestID string) {
	rt.sendErrorCustom(c, errs.NewError(code), requestID)
}

func (rt *Router) sendErrorCustom(c *Client, customErr *errs.CustomError, requestID string) {
	c.sendEvent(ErrorEvent{
		Type:      EventError,
		Code:      customErr.Code,
		Message:   customErr.Message,
		RequestID: requestID,
	})
}
