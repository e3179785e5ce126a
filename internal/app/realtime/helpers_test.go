package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pitchchat/internal/app/session"
	"pitchchat/internal/app/store"
)

// fakeStore is an in-memory Store for exercising the realtime core without a
// database. failCreate makes CreateMessage fail to simulate a persistence outage.
type fakeStore struct {
	mu sync.Mutex

	failCreate bool
	failRead   bool

	messages     map[string]*store.Message
	order        []string
	participants map[string][]string
	delivered    map[string]time.Time
	read         map[string]time.Time
	touched      map[string]time.Time

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:     make(map[string]*store.Message),
		participants: make(map[string][]string),
		delivered:    make(map[string]time.Time),
		read:         make(map[string]time.Time),
		touched:      make(map[string]time.Time),
	}
}

func receiptKey(messageID, userID string) string {
	return messageID + "|" + userID
}

func (f *fakeStore) CreateMessage(_ context.Context, conversationID, senderID, senderName, content string, attachments []store.Attachment) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate {
		return nil, errors.New("fake store: create failed")
	}

	f.nextID++
	msg := &store.Message{
		ID:             fmt.Sprintf("msg-%d", f.nextID),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Content:        content,
		Attachments:    attachments,
		SentAt:         time.Now().UTC(),
	}
	if msg.Attachments == nil {
		msg.Attachments = []store.Attachment{}
	}

	f.messages[msg.ID] = msg
	f.order = append(f.order, msg.ID)

	return msg, nil
}

func (f *fakeStore) GetMessage(_ context.Context, messageID string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.messages[messageID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return msg, nil
}

func (f *fakeStore) ListRecentMessages(_ context.Context, conversationID string, limit int) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRead {
		return nil, errors.New("fake store: read failed")
	}

	var messages []store.Message
	for _, id := range f.order {
		msg := f.messages[id]
		if msg.ConversationID == conversationID {
			messages = append(messages, *msg)
		}
	}
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func (f *fakeStore) ListActiveParticipants(_ context.Context, conversationID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.participants[conversationID], nil
}

func (f *fakeStore) CreateDeliveryReceipt(_ context.Context, messageID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.delivered[receiptKey(messageID, userID)]; !ok {
		f.delivered[receiptKey(messageID, userID)] = at
	}
	return nil
}

func (f *fakeStore) MarkRead(_ context.Context, messageID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.read[receiptKey(messageID, userID)] = at
	return nil
}

func (f *fakeStore) TouchConversation(_ context.Context, conversationID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched[conversationID] = at
	return nil
}

func (f *fakeStore) deliveredAt(messageID, userID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	at, ok := f.delivered[receiptKey(messageID, userID)]
	return at, ok
}

func (f *fakeStore) readAt(messageID, userID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	at, ok := f.read[receiptKey(messageID, userID)]
	return at, ok
}

func testIdentity(userID string) session.Identity {
	return session.Identity{
		UserID:   userID,
		Username: "name-" + userID,
		UserType: "creator",
	}
}

// newTestClient builds a client with no underlying websocket; pumps are never
// started, so outbound frames accumulate in the send buffer for inspection.
func newTestClient(h *Hub, userID string) *Client {
	return NewClient(h, nil, testIdentity(userID))
}

// attachTestClient registers the client the same way the websocket handler does.
func attachTestClient(h *Hub, userID string) *Client {
	c := newTestClient(h, userID)
	h.Attach(c)
	return c
}

// drainFrames empties the client's send buffer and decodes every frame.
func drainFrames(t *testing.T, c *Client) []map[string]any {
	t.Helper()

	var events []map[string]any
	for {
		select {
		case payload := <-c.send:
			var event map[string]any
			if err := json.Unmarshal(payload, &event); err != nil {
				t.Fatalf("failed to decode outbound frame %q: %v", payload, err)
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

// eventTypes maps decoded frames to their type tags, in order.
func eventTypes(events []map[string]any) []string {
	types := make([]string, 0, len(events))
	for _, event := range events {
		eventType, _ := event["type"].(string)
		types = append(types, eventType)
	}
	return types
}

// eventsOfType filters decoded frames by type tag.
func eventsOfType(events []map[string]any, eventType string) []map[string]any {
	var matched []map[string]any
	for _, event := range events {
		if event["type"] == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}
