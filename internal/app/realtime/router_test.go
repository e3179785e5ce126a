package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"pitchchat/internal/pkg/errs"
)

func dispatch(h *Hub, c *Client, frame string) {
	h.router.Dispatch(context.Background(), c, []byte(frame))
}

// TestSendMessageDelivery covers the happy path: the sender gets message_sent,
// the other subscriber gets new_message with the content.
func TestSendMessageDelivery(t *testing.T) {
	st := newFakeStore()
	st.participants["conv-42"] = []string{"user-1", "user-2"}

	h := NewHub(st)
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	user2 := attachTestClient(h, "user-2")

	dispatch(h, user1, `{"type":"join_conversation","conversationId":"conv-42"}`)
	dispatch(h, user2, `{"type":"join_conversation","conversationId":"conv-42"}`)
	drainFrames(t, user1)
	drainFrames(t, user2)

	dispatch(h, user1, `{"type":"send_message","conversationId":"conv-42","content":"hi","requestId":"req-9"}`)

	sent := eventsOfType(drainFrames(t, user1), EventMessageSent)
	if len(sent) != 1 {
		t.Fatalf("expected exactly one message_sent for the sender, got %d", len(sent))
	}
	if sent[0]["content"] != "hi" {
		t.Errorf("expected confirmed content %q, got %v", "hi", sent[0]["content"])
	}
	if sent[0]["requestId"] != "req-9" {
		t.Errorf("expected requestId echo req-9, got %v", sent[0]["requestId"])
	}

	received := eventsOfType(drainFrames(t, user2), EventNewMessage)
	if len(received) != 1 {
		t.Fatalf("expected exactly one new_message for the recipient, got %d", len(received))
	}
	if received[0]["content"] != "hi" {
		t.Errorf("expected delivered content %q, got %v", "hi", received[0]["content"])
	}
	if received[0]["senderId"] != "user-1" {
		t.Errorf("expected senderId user-1, got %v", received[0]["senderId"])
	}

	messageID, _ := received[0]["messageId"].(string)

	// One delivery receipt per other active participant, none for the sender.
	if _, ok := st.deliveredAt(messageID, "user-2"); !ok {
		t.Error("expected a delivery receipt for user-2")
	}
	if _, ok := st.deliveredAt(messageID, "user-1"); ok {
		t.Error("expected no delivery receipt for the sender")
	}

	if _, ok := st.touched["conv-42"]; !ok {
		t.Error("expected the conversation lastMessageAt to be touched")
	}
}

// TestSendMessageOfflineRecipient covers queue-then-replay: the offline
// subscriber's event is queued and delivered as queued_message on reconnect,
// before any new live traffic.
func TestSendMessageOfflineRecipient(t *testing.T) {
	st := newFakeStore()
	st.participants["conv-42"] = []string{"user-1", "user-2"}

	h := NewHub(st)
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	dispatch(h, user1, `{"type":"join_conversation","conversationId":"conv-42"}`)

	// user-2 subscribed in a prior session; no live connection now.
	h.subs.Join("conv-42", "user-2")

	dispatch(h, user1, `{"type":"send_message","conversationId":"conv-42","content":"missed you"}`)

	if got := h.queue.Len("user-2"); got != 1 {
		t.Fatalf("expected 1 queued event for the offline user, got %d", got)
	}

	user2 := attachTestClient(h, "user-2")
	events := drainFrames(t, user2)
	types := eventTypes(events)

	if len(types) < 2 || types[0] != EventConnected || types[1] != EventQueuedMessage {
		t.Fatalf("expected hello then queued_message, got %v", types)
	}

	queued := events[1]
	if queued["originalType"] != EventNewMessage {
		t.Errorf("expected originalType new_message, got %v", queued["originalType"])
	}
	if queued["content"] != "missed you" {
		t.Errorf("expected queued content to survive, got %v", queued["content"])
	}
	if queued["queuedAt"] == nil {
		t.Error("expected queuedAt on the replayed event")
	}

	if got := h.queue.Len("user-2"); got != 0 {
		t.Errorf("expected the queue to be cleared by the drain, got %d", got)
	}
}

// TestSendMessagePersistFailure covers the no-broadcast-on-persist-failure
// property: one error to the sender, nothing to anyone else.
func TestSendMessagePersistFailure(t *testing.T) {
	st := newFakeStore()
	st.failCreate = true
	st.participants["conv-42"] = []string{"user-1", "user-2"}

	h := NewHub(st)
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	user2 := attachTestClient(h, "user-2")
	dispatch(h, user1, `{"type":"join_conversation","conversationId":"conv-42"}`)
	dispatch(h, user2, `{"type":"join_conversation","conversationId":"conv-42"}`)
	drainFrames(t, user1)
	drainFrames(t, user2)

	dispatch(h, user1, `{"type":"send_message","conversationId":"conv-42","content":"doomed","requestId":"req-1"}`)

	senderEvents := drainFrames(t, user1)
	errored := eventsOfType(senderEvents, EventError)
	if len(errored) != 1 {
		t.Fatalf("expected exactly one error for the sender, got %d (%v)", len(errored), eventTypes(senderEvents))
	}
	if errored[0]["requestId"] != "req-1" {
		t.Errorf("expected requestId echo on the error, got %v", errored[0]["requestId"])
	}
	if len(eventsOfType(senderEvents, EventMessageSent)) != 0 {
		t.Error("expected no message_sent confirmation on persistence failure")
	}

	if events := drainFrames(t, user2); len(events) != 0 {
		t.Fatalf("expected no events for other subscribers, got %v", eventTypes(events))
	}
	if got := h.queue.Len("user-2"); got != 0 {
		t.Errorf("expected nothing queued on persistence failure, got %d", got)
	}
}

func TestSendMessageValidation(t *testing.T) {
	h := NewHub(newFakeStore())
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	drainFrames(t, user1)

	cases := []struct {
		name     string
		frame    string
		wantCode int
	}{
		{"missing conversation", `{"type":"send_message","content":"hi"}`, errs.ErrConversationRequired},
		{"missing content", `{"type":"send_message","conversationId":"conv-42"}`, errs.ErrContentRequired},
		{"unknown type", `{"type":"emote"}`, errs.ErrUnsupportedEventType},
		{"invalid json", `{"type":`, errs.ErrInvalidJSONFormat},
		{"foreign attachment key", `{"type":"send_message","conversationId":"conv-42","content":"hi","attachments":[{"fileKey":"conv-13/u/deck.pdf","fileName":"deck.pdf","mimeType":"application/pdf","fileSize":100}]}`, errs.ErrAttachmentKeyInvalid},
		{"bad attachment type", `{"type":"send_message","conversationId":"conv-42","content":"hi","attachments":[{"fileKey":"conv-42/u/tool.exe","fileName":"tool.exe","mimeType":"application/octet-stream","fileSize":100}]}`, errs.ErrAttachmentTypeInvalid},
	}

	for _, tc := range cases {
		dispatch(h, user1, tc.frame)

		events := drainFrames(t, user1)
		errored := eventsOfType(events, EventError)
		if len(errored) != 1 {
			t.Errorf("%s: expected exactly one error event, got %v", tc.name, eventTypes(events))
			continue
		}
		if code, _ := errored[0]["code"].(float64); int(code) != tc.wantCode {
			t.Errorf("%s: expected code %d, got %v", tc.name, tc.wantCode, errored[0]["code"])
		}
	}
}

func TestSendMessageContentTooLong(t *testing.T) {
	h := NewHub(newFakeStore())
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	drainFrames(t, user1)

	long := make([]byte, MaxContentBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	frame := fmt.Sprintf(`{"type":"send_message","conversationId":"conv-42","content":%q}`, long)

	dispatch(h, user1, frame)

	errored := eventsOfType(drainFrames(t, user1), EventError)
	if len(errored) != 1 {
		t.Fatalf("expected one error event, got %d", len(errored))
	}
	if code, _ := errored[0]["code"].(float64); int(code) != errs.ErrMessageContentTooLong {
		t.Errorf("expected code %d, got %v", errs.ErrMessageContentTooLong, errored[0]["code"])
	}
}

func TestTypingFanout(t *testing.T) {
	h := NewHub(newFakeStore())
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	user2 := attachTestClient(h, "user-2")
	dispatch(h, user1, `{"type":"join_conversation","conversationId":"conv-42"}`)
	dispatch(h, user2, `{"type":"join_conversation","conversationId":"conv-42"}`)
	drainFrames(t, user1)
	drainFrames(t, user2)

	dispatch(h, user1, `{"type":"typing_start","conversationId":"conv-42"}`)

	typing := eventsOfType(drainFrames(t, user2), EventUserTyping)
	if len(typing) != 1 {
		t.Fatalf("expected one user_typing for the peer, got %d", len(typing))
	}
	if typing[0]["isTyping"] != true {
		t.Error("expected isTyping true after typing_start")
	}
	if typing[0]["username"] != "name-user-1" {
		t.Errorf("expected the typist's display name, got %v", typing[0]["username"])
	}

	if events := drainFrames(t, user1); len(events) != 0 {
		t.Errorf("typist must not receive their own typing event, got %v", eventTypes(events))
	}

	if !h.typing.IsTyping("conv-42", "user-1") {
		t.Error("expected the typing flag to be recorded")
	}

	dispatch(h, user1, `{"type":"typing_stop","conversationId":"conv-42"}`)

	typing = eventsOfType(drainFrames(t, user2), EventUserTyping)
	if len(typing) != 1 || typing[0]["isTyping"] != false {
		t.Fatalf("expected one user_typing with isTyping=false, got %v", typing)
	}
	if h.typing.IsTyping("conv-42", "user-1") {
		t.Error("expected typing_stop to clear the flag")
	}
}

func TestMarkReadNotifiesSender(t *testing.T) {
	st := newFakeStore()
	st.participants["conv-42"] = []string{"user-1", "user-2"}

	h := NewHub(st)
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	user2 := attachTestClient(h, "user-2")
	dispatch(h, user1, `{"type":"join_conversation","conversationId":"conv-42"}`)
	dispatch(h, user2, `{"type":"join_conversation","conversationId":"conv-42"}`)

	dispatch(h, user1, `{"type":"send_message","conversationId":"conv-42","content":"read me"}`)
	drainFrames(t, user1)

	received := eventsOfType(drainFrames(t, user2), EventNewMessage)
	if len(received) != 1 {
		t.Fatalf("expected the message to arrive, got %d new_message events", len(received))
	}
	messageID, _ := received[0]["messageId"].(string)

	dispatch(h, user2, fmt.Sprintf(`{"type":"mark_read","messageId":%q}`, messageID))

	read := eventsOfType(drainFrames(t, user1), EventMessageRead)
	if len(read) != 1 {
		t.Fatalf("expected one message_read for the sender, got %d", len(read))
	}
	if read[0]["readBy"] != "user-2" {
		t.Errorf("expected readBy user-2, got %v", read[0]["readBy"])
	}
	if read[0]["readByName"] != "name-user-2" {
		t.Errorf("expected readByName name-user-2, got %v", read[0]["readByName"])
	}

	if _, ok := st.readAt(messageID, "user-2"); !ok {
		t.Error("expected the read receipt to be stamped in the store")
	}
}

func TestMarkReadQueuesForOfflineSender(t *testing.T) {
	st := newFakeStore()
	st.participants["conv-42"] = []string{"user-1", "user-2"}

	h := NewHub(st)
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	user2 := attachTestClient(h, "user-2")
	dispatch(h, user1, `{"type":"join_conversation","conversationId":"conv-42"}`)
	dispatch(h, user2, `{"type":"join_conversation","conversationId":"conv-42"}`)

	dispatch(h, user1, `{"type":"send_message","conversationId":"conv-42","content":"read me later"}`)
	received := eventsOfType(drainFrames(t, user2), EventNewMessage)
	if len(received) != 1 {
		t.Fatalf("expected the message to arrive, got %d new_message events", len(received))
	}
	messageID, _ := received[0]["messageId"].(string)

	h.Detach(user1)

	dispatch(h, user2, fmt.Sprintf(`{"type":"mark_read","messageId":%q}`, messageID))

	if got := h.queue.Len("user-1"); got != 1 {
		t.Fatalf("expected the read notification queued for the offline sender, got %d", got)
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	h := NewHub(newFakeStore())
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	drainFrames(t, user1)

	dispatch(h, user1, `{"type":"mark_read","messageId":"msg-404"}`)

	errored := eventsOfType(drainFrames(t, user1), EventError)
	if len(errored) != 1 {
		t.Fatalf("expected one error event, got %d", len(errored))
	}
	if code, _ := errored[0]["code"].(float64); int(code) != errs.ErrMessageNotFound {
		t.Errorf("expected code %d, got %v", errs.ErrMessageNotFound, errored[0]["code"])
	}
}

func TestJoinConversationReturnsHistory(t *testing.T) {
	st := newFakeStore()

	h := NewHub(st)
	defer h.Shutdown()

	seeder := attachTestClient(h, "user-1")
	dispatch(h, seeder, `{"type":"join_conversation","conversationId":"conv-42"}`)
	for i := 1; i <= 3; i++ {
		dispatch(h, seeder, fmt.Sprintf(`{"type":"send_message","conversationId":"conv-42","content":"m%d"}`, i))
	}

	user2 := attachTestClient(h, "user-2")
	drainFrames(t, user2)

	dispatch(h, user2, `{"type":"join_conversation","conversationId":"conv-42"}`)

	joined := eventsOfType(drainFrames(t, user2), EventConversationJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one conversation_joined, got %d", len(joined))
	}

	raw, _ := json.Marshal(joined[0]["messages"])
	var messages []map[string]any
	if err := json.Unmarshal(raw, &messages); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}

	if len(messages) != 3 {
		t.Fatalf("expected 3 history messages, got %d", len(messages))
	}
	// Oldest first.
	for i, msg := range messages {
		want := fmt.Sprintf("m%d", i+1)
		if msg["content"] != want {
			t.Errorf("history[%d]: expected %q, got %v", i, want, msg["content"])
		}
	}
}

func TestGetOnlineUsersSnapshot(t *testing.T) {
	h := NewHub(newFakeStore())
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	attachTestClient(h, "user-2")
	drainFrames(t, user1)

	dispatch(h, user1, `{"type":"get_online_users"}`)

	snapshots := eventsOfType(drainFrames(t, user1), EventOnlineUsers)
	if len(snapshots) != 1 {
		t.Fatalf("expected one online_users event, got %d", len(snapshots))
	}

	raw, _ := json.Marshal(snapshots[0]["users"])
	var users []map[string]any
	if err := json.Unmarshal(raw, &users); err != nil {
		t.Fatalf("failed to decode users: %v", err)
	}

	if len(users) != 1 {
		t.Fatalf("expected 1 user (requester excluded), got %d", len(users))
	}
	if users[0]["userId"] != "user-2" {
		t.Errorf("expected user-2 in the snapshot, got %v", users[0]["userId"])
	}
	if users[0]["isOnline"] != true {
		t.Error("expected isOnline true")
	}
	if users[0]["userType"] != "creator" {
		t.Errorf("expected userType creator, got %v", users[0]["userType"])
	}
}

func TestPingPong(t *testing.T) {
	h := NewHub(newFakeStore())
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	drainFrames(t, user1)

	dispatch(h, user1, `{"type":"ping"}`)

	pongs := eventsOfType(drainFrames(t, user1), EventPong)
	if len(pongs) != 1 {
		t.Fatalf("expected one pong, got %d", len(pongs))
	}
	if pongs[0]["userId"] != "user-1" {
		t.Errorf("expected pong userId user-1, got %v", pongs[0]["userId"])
	}
	if pongs[0]["timestamp"] == nil {
		t.Error("expected pong timestamp")
	}
}

// TestSenderOrderingPreserved checks that one sender's messages broadcast in
// arrival order.
func TestSenderOrderingPreserved(t *testing.T) {
	h := NewHub(newFakeStore())
	defer h.Shutdown()

	user1 := attachTestClient(h, "user-1")
	user2 := attachTestClient(h, "user-2")
	dispatch(h, user1, `{"type":"join_conversation","conversationId":"conv-42"}`)
	dispatch(h, user2, `{"type":"join_conversation","conversationId":"conv-42"}`)
	drainFrames(t, user2)

	for i := 1; i <= 5; i++ {
		dispatch(h, user1, fmt.Sprintf(`{"type":"send_message","conversationId":"conv-42","content":"m%d"}`, i))
	}

	received := eventsOfType(drainFrames(t, user2), EventNewMessage)
	if len(received) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(received))
	}
	for i, event := range received {
		want := fmt.Sprintf("m%d", i+1)
		if event["content"] != want {
			t.Errorf("position %d: expected %q, got %v", i, want, event["content"])
		}
	}
}
