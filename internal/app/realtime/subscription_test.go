package realtime

import (
	"sort"
	"testing"
)

func TestJoinIsIdempotent(t *testing.T) {
	s := NewSubscriptionIndex(NewRegistry(), NewOfflineQueue())

	s.Join("conv-42", "user-1")
	s.Join("conv-42", "user-1")

	if subs := s.Subscribers("conv-42", ""); len(subs) != 1 {
		t.Fatalf("expected 1 subscriber after duplicate join, got %d", len(subs))
	}
}

func TestSubscribersExcludesRequestedUser(t *testing.T) {
	s := NewSubscriptionIndex(NewRegistry(), NewOfflineQueue())

	s.Join("conv-42", "user-1")
	s.Join("conv-42", "user-2")
	s.Join("conv-42", "user-3")

	subs := s.Subscribers("conv-42", "user-2")
	sort.Strings(subs)

	if len(subs) != 2 || subs[0] != "user-1" || subs[1] != "user-3" {
		t.Fatalf("expected [user-1 user-3], got %v", subs)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	registry := NewRegistry()
	queue := NewOfflineQueue()
	s := NewSubscriptionIndex(registry, queue)

	sender := NewClient(nil, nil, testIdentity("user-1"))
	receiver := NewClient(nil, nil, testIdentity("user-2"))
	registry.Register(sender)
	registry.Register(receiver)

	s.Join("conv-42", "user-1")
	s.Join("conv-42", "user-2")

	s.Broadcast("conv-42", []byte(`{"type":"new_message"}`), "user-1")

	select {
	case <-receiver.send:
	default:
		t.Error("expected the other subscriber to receive the broadcast")
	}

	select {
	case payload := <-sender.send:
		t.Errorf("sender must never receive its own broadcast, got %s", payload)
	default:
	}
}

func TestBroadcastQueuesForOfflineSubscribers(t *testing.T) {
	registry := NewRegistry()
	queue := NewOfflineQueue()
	s := NewSubscriptionIndex(registry, queue)

	// user-2 joined in a prior "session" but holds no live connection.
	s.Join("conv-42", "user-1")
	s.Join("conv-42", "user-2")

	s.Broadcast("conv-42", []byte(`{"type":"new_message"}`), "user-1")

	if got := queue.Len("user-2"); got != 1 {
		t.Fatalf("expected 1 queued event for the offline subscriber, got %d", got)
	}
	if got := queue.Len("user-1"); got != 0 {
		t.Fatalf("expected no queued events for the excluded sender, got %d", got)
	}
}

func TestBroadcastToConversationWithoutSubscribers(t *testing.T) {
	s := NewSubscriptionIndex(NewRegistry(), NewOfflineQueue())

	// Must not panic or queue anything.
	s.Broadcast("conv-99", []byte(`{}`), "")
}
