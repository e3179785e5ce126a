package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"pitchchat/internal/app/session"
	"pitchchat/internal/pkg/logx"
)

// Presence announces aggregate online/offline transitions to every other
// connected user. Transitions fire only at the edges: a user's first
// connection and their last disconnection. A second device coming or going
// changes nothing about the aggregate status and stays silent.
//
// Presence events are ephemeral by nature and go to live connections only;
// they are never written to offline queues.
type Presence struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewPresence wires the broadcaster to the connection registry.
func NewPresence(registry *Registry) *Presence {
	return &Presence{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "Presence").Logger(),
	}
}

// UserOnline emits user_online to every other connected user.
func (p *Presence) UserOnline(identity session.Identity) {
	p.broadcast(PresenceEvent{
		Type:     EventUserOnline,
		UserID:   identity.UserID,
		Username: identity.Username,
	})

	p.logger.Info().Str("user_id", identity.UserID).Msg("User came online.")
}

// UserOffline emits user_offline, with the last-seen timestamp, to every
// other connected user.
func (p *Presence) UserOffline(identity session.Identity, lastSeen time.Time) {
	p.broadcast(PresenceEvent{
		Type:     EventUserOffline,
		UserID:   identity.UserID,
		Username: identity.Username,
		LastSeen: &lastSeen,
	})

	p.logger.Info().Str("user_id", identity.UserID).Msg("User went offline.")
}

func (p *Presence) broadcast(event PresenceEvent) {
	payload, err := marshalEvent(event)
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal presence event.")
		return
	}

	for _, peer := range p.registry.Snapshot(event.UserID) {
		// Best effort: a peer that cannot take the frame right now simply
		// misses this transition.
		p.registry.SendToUser(peer.UserID, payload)
	}
}
