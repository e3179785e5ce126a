package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pitchchat/internal/app/session"
	"pitchchat/internal/pkg/logx"
)

// Registry owns the set of live connections per user. A user id is present as
// a key only while it has at least one live connection; emptied sets are
// removed immediately, so key presence doubles as the online flag.
//
// The Registry delivers and registers; it never queues. Callers that see a
// false return from SendToUser decide what to do with the undelivered event.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}

	// onOffline is invoked (outside the lock) when removal of a dead
	// connection during SendToUser drops a user to zero connections. Normal
	// unregistration reports the transition through its return value instead.
	onOffline func(identity session.Identity, lastSeen time.Time)

	logger zerolog.Logger
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]map[*Client]struct{}),
		logger: logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// SetOfflineHook installs the callback for offline transitions caused by
// dead-connection removal inside SendToUser.
func (r *Registry) SetOfflineHook(fn func(identity session.Identity, lastSeen time.Time)) {
	r.onOffline = fn
}

// Register adds the client to its user's connection set, creating the set if
// absent. Returns true when this is the user's first live connection.
func (r *Registry) Register(c *Client) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c.identity.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[c.identity.UserID] = set
	}
	set[c] = struct{}{}

	r.logger.Debug().
		Str("user_id", c.identity.UserID).
		Int("connections", len(set)).
		Msg("Connection registered.")

	return !ok
}

// Unregister removes the client from its user's set, deleting the key when
// the set empties. Returns true only when this call removed the user's last
// connection; repeated calls for the same client are no-ops.
func (r *Registry) Unregister(c *Client) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c.identity.UserID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}

	delete(set, c)

	remaining := len(set)
	if remaining == 0 {
		delete(r.conns, c.identity.UserID)
	}

	r.logger.Debug().
		Str("user_id", c.identity.UserID).
		Int("connections", remaining).
		Msg("Connection unregistered.")

	return remaining == 0
}

// SendToUser pushes the payload to every live connection of the user. A
// connection that refuses the frame is treated as dead and removed without
// failing the call. Returns true iff at least one connection accepted it.
func (r *Registry) SendToUser(userID string, payload []byte) bool {
	r.mu.RLock()
	set := r.conns[userID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	if len(clients) == 0 {
		return false
	}

	delivered := false
	var dead []*Client

	for _, c := range clients {
		if err := c.trySend(payload); err != nil {
			dead = append(dead, c)
		} else {
			delivered = true
		}
	}

	for _, c := range dead {
		r.logger.Warn().
			Str("user_id", c.identity.UserID).
			Msg("Removing dead connection after failed send.")

		c.close()

		if r.Unregister(c) && r.onOffline != nil {
			// Run the presence fan-out on its own goroutine: it broadcasts
			// through this registry and must not re-enter the current send.
			go r.onOffline(c.identity, time.Now().UTC())
		}
	}

	return delivered
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns[userID]) > 0
}

// Snapshot returns a point-in-time list of online identities, one entry per
// user, skipping excludeUserID.
func (r *Registry) Snapshot(excludeUserID string) []session.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]session.Identity, 0, len(r.conns))
	for userID, set := range r.conns {
		if userID == excludeUserID {
			continue
		}
		for c := range set {
			identities = append(identities, c.identity)
			break
		}
	}

	return identities
}

// CloseAll closes every live connection. Used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, set := range r.conns {
		for c := range set {
			c.close()
		}
	}
	r.conns = make(map[string]map[*Client]struct{})
}
