package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pitchchat/internal/pkg/logx"
)

// MaxQueuedEvents bounds each user's offline queue. The queue is a best-effort
// live-notification channel, not a durable log; the durable record lives in
// the message store, so evicting stale entries is acceptable.
const MaxQueuedEvents = 100

// QueuedEvent is an outbound event awaiting a user's reconnection.
type QueuedEvent struct {
	Payload  json.RawMessage
	QueuedAt time.Time
}

// OfflineQueue holds per-user bounded FIFO queues of undelivered events.
type OfflineQueue struct {
	mu     sync.Mutex
	queues map[string][]QueuedEvent
	logger zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewOfflineQueue returns an empty offline queue.
func NewOfflineQueue() *OfflineQueue {
	return &OfflineQueue{
		queues: make(map[string][]QueuedEvent),
		logger: logx.Logger().With().Str("component", "OfflineQueue").Logger(),
		now:    time.Now,
	}
}

// Enqueue appends an event to the user's queue, evicting the oldest entry
// first when the queue is full, so the most recent MaxQueuedEvents survive.
func (q *OfflineQueue) Enqueue(userID string, payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue := q.queues[userID]

	if len(queue) >= MaxQueuedEvents {
		dropped := len(queue) - MaxQueuedEvents + 1
		queue = append(queue[:0:0], queue[dropped:]...)

		q.logger.Warn().
			Str("user_id", userID).
			Int("dropped", dropped).
			Msg("Offline queue full, evicted oldest events.")
	}

	q.queues[userID] = append(queue, QueuedEvent{
		Payload:  json.RawMessage(payload),
		QueuedAt: q.now().UTC(),
	})
}

// Drain returns the user's queued events in FIFO order and clears the queue.
// The swap happens under the lock, so an enqueue racing with a drain lands
// either in the returned slice or in the fresh queue, never both.
func (q *OfflineQueue) Drain(userID string) []QueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, ok := q.queues[userID]
	if !ok {
		return nil
	}

	delete(q.queues, userID)

	q.logger.Debug().
		Str("user_id", userID).
		Int("events", len(queue)).
		Msg("Offline queue drained.")

	return queue
}

// Len reports the number of events queued for the user.
func (q *OfflineQueue) Len(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.queues[userID])
}
