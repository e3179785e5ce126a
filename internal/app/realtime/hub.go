package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"pitchchat/internal/app/session"
	"pitchchat/internal/app/store"
	"pitchchat/internal/pkg/logx"
)

// Hub assembles the realtime components and owns their lifecycle. It is the
// only owner of the shared mutable state (connections, subscriptions, offline
// queues, typing flags); the HTTP layer reaches in solely through Attach and
// the read-only OnlineUsers query.
type Hub struct {
	registry *Registry
	queue    *OfflineQueue
	subs     *SubscriptionIndex
	typing   *TypingTracker
	presence *Presence
	router   *Router

	logger zerolog.Logger
}

// NewHub wires the components together and starts the typing sweep.
func NewHub(st store.Store) *Hub {
	registry := NewRegistry()
	queue := NewOfflineQueue()
	subs := NewSubscriptionIndex(registry, queue)
	typing := NewTypingTracker()
	presence := NewPresence(registry)

	// Dead connections discovered mid-send report their offline transition
	// through the same broadcaster as orderly disconnects.
	registry.SetOfflineHook(presence.UserOffline)

	h := &Hub{
		registry: registry,
		queue:    queue,
		subs:     subs,
		typing:   typing,
		presence: presence,
		router:   NewRouter(st, registry, queue, subs, typing),
		logger:   logx.Logger().With().Str("component", "Hub").Logger(),
	}

	typing.Start()

	return h
}

// Attach registers a freshly authenticated connection: hello event, offline
// queue drain, then the presence announcement when this is the user's first
// device. The drained events enter the send buffer before the read loop
// starts, so they always precede new live events on this connection.
func (h *Hub) Attach(c *Client) {
	first := h.registry.Register(c)

	c.sendEvent(ConnectedEvent{
		Type:      EventConnected,
		UserID:    c.identity.UserID,
		Username:  c.identity.Username,
		Timestamp: time.Now().UTC(),
	})

	for _, queued := range h.queue.Drain(c.identity.UserID) {
		payload, err := wrapQueued(queued.Payload, queued.QueuedAt)
		if err != nil {
			h.logger.Error().Err(err).
				Str("user_id", c.identity.UserID).
				Msg("Failed to wrap queued event, skipping.")
			continue
		}

		if err := c.trySend(payload); err != nil {
			h.logger.Warn().Err(err).
				Str("user_id", c.identity.UserID).
				Msg("Failed to deliver queued event on reconnect.")
			break
		}
	}

	if first {
		h.presence.UserOnline(c.identity)
	}

	h.logger.Info().
		Str("user_id", c.identity.UserID).
		Bool("first_connection", first).
		Msg("Client attached.")
}

// Detach unregisters a connection and announces the offline transition when
// it was the user's last device. Already-completed persistence and broadcast
// steps are never rolled back.
func (h *Hub) Detach(c *Client) {
	last := h.registry.Unregister(c)

	c.close()

	if last {
		h.presence.UserOffline(c.identity, time.Now().UTC())
	}

	h.logger.Info().
		Str("user_id", c.identity.UserID).
		Bool("last_connection", last).
		Msg("Client detached.")
}

// OnlineUsers is the narrow read-only presence query offered to the rest of
// the platform. It never exposes the underlying registry.
func (h *Hub) OnlineUsers() []session.Identity {
	return h.registry.Snapshot("")
}

// IsOnline reports whether the given user currently has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

// Shutdown stops the background sweep and closes every live connection.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	h.typing.Stop()
	h.registry.CloseAll()

	h.logger.Info().Msg("Hub shutdown complete.")
}
