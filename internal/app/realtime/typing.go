package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pitchchat/internal/pkg/logx"
)

const (
	// typingTTL is how long a typing flag stays meaningful without a refresh.
	typingTTL = 10 * time.Second

	// typingSweepInterval is how often expired flags are physically removed.
	typingSweepInterval = 30 * time.Second
)

type typingKey struct {
	conversationID string
	userID         string
}

type typingState struct {
	updatedAt time.Time
}

// TypingTracker keeps ephemeral per-conversation-per-user typing flags.
// Reads treat entries older than typingTTL as absent; the periodic sweep only
// bounds memory and never produces outbound events. Clients interpret the
// absence of a recent user_typing as "not typing".
type TypingTracker struct {
	mu     sync.Mutex
	states map[typingKey]typingState

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewTypingTracker returns a tracker; Start launches its sweep loop.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		states: make(map[typingKey]typingState),
		stop:   make(chan struct{}),
		logger: logx.Logger().With().Str("component", "TypingTracker").Logger(),
		now:    time.Now,
	}
}

// Start launches the background sweep. Owned by the hub lifecycle.
func (t *TypingTracker) Start() {
	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(typingSweepInterval)
		defer ticker.Stop()

		t.logger.Info().Msg("Typing sweep loop started.")

		for {
			select {
			case <-ticker.C:
				t.Sweep()
			case <-t.stop:
				t.logger.Info().Msg("Typing sweep loop stopped.")
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (t *TypingTracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	t.wg.Wait()
}

// Set records or clears the typing flag for (conversation, user). A stop
// removes the entry immediately rather than waiting for expiry.
func (t *TypingTracker) Set(conversationID, userID string, isTyping bool) {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !isTyping {
		delete(t.states, key)
		return
	}

	t.states[key] = typingState{updatedAt: t.now()}
}

// IsTyping reports whether the user has a live, unexpired typing flag.
func (t *TypingTracker) IsTyping(conversationID, userID string) bool {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[key]
	if !ok {
		return false
	}

	return t.now().Sub(state.updatedAt) <= typingTTL
}

// Typists returns the ids of users with a live typing flag in the conversation.
func (t *TypingTracker) Typists(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var userIDs []string
	deadline := t.now().Add(-typingTTL)
	for key, state := range t.states {
		if key.conversationID != conversationID {
			continue
		}
		if state.updatedAt.Before(deadline) {
			continue
		}
		userIDs = append(userIDs, key.userID)
	}

	return userIDs
}

// Sweep physically removes expired entries. Also invoked by the loop Start runs.
func (t *TypingTracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := t.now().Add(-typingTTL)
	removed := 0
	for key, state := range t.states {
		if state.updatedAt.Before(deadline) {
			delete(t.states, key)
			removed++
		}
	}

	if removed > 0 {
		t.logger.Debug().
			Int("removed", removed).
			Int("remaining", len(t.states)).
			Msg("Typing sweep removed expired entries.")
	}
}
