package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"pitchchat/internal/pkg/logx"
)

// SubscriptionIndex maps a conversation to the users currently listening to
// it. Subscription is explicit: a user joins via a join_conversation event,
// never implicitly through conversation membership, so broadcasts only fan
// out to users who asked for this conversation in the current process
// lifetime. There is no leave; the index resets with the process.
type SubscriptionIndex struct {
	mu   sync.RWMutex
	subs map[string]map[string]struct{}

	registry *Registry
	queue    *OfflineQueue

	logger zerolog.Logger
}

// NewSubscriptionIndex wires the index to its delivery targets.
func NewSubscriptionIndex(registry *Registry, queue *OfflineQueue) *SubscriptionIndex {
	return &SubscriptionIndex{
		subs:     make(map[string]map[string]struct{}),
		registry: registry,
		queue:    queue,
		logger:   logx.Logger().With().Str("component", "SubscriptionIndex").Logger(),
	}
}

// Join idempotently subscribes the user to the conversation's live broadcasts.
func (s *SubscriptionIndex) Join(conversationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[conversationID]
	if !ok {
		set = make(map[string]struct{})
		s.subs[conversationID] = set
	}

	if _, ok := set[userID]; !ok {
		set[userID] = struct{}{}

		s.logger.Debug().
			Str("conversation_id", conversationID).
			Str("user_id", userID).
			Int("subscribers", len(set)).
			Msg("User subscribed to conversation.")
	}
}

// Subscribers returns the subscribed user ids, skipping excludeUserID.
func (s *SubscriptionIndex) Subscribers(conversationID, excludeUserID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.subs[conversationID]
	userIDs := make([]string, 0, len(set))
	for userID := range set {
		if userID == excludeUserID {
			continue
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs
}

// Broadcast delivers the payload to every subscriber except excludeUserID.
// Subscribers without a live connection get the event queued instead; a
// failure for one subscriber never aborts delivery to the rest.
func (s *SubscriptionIndex) Broadcast(conversationID string, payload []byte, excludeUserID string) {
	for _, userID := range s.Subscribers(conversationID, excludeUserID) {
		if !s.registry.SendToUser(userID, payload) {
			s.queue.Enqueue(userID, payload)
		}
	}
}
