package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pitchchat/internal/app/session"
	"pitchchat/internal/pkg/logx"
)

const (
	// timeout for writing a frame to the websocket.
	writeWait = 10 * time.Second

	// maximum time to wait for a pong frame from the client.
	pongWait = 60 * time.Second

	// frequency of server-sent ping frames.
	pingPeriod = (pongWait * 9) / 10

	// maximum size in bytes of an inbound frame.
	maxMessageSize = 8192

	// per-connection outbound buffer, in frames.
	sendBufferSize = 256
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// Client is one live websocket connection owned by one verified identity.
// A user with several devices owns several Clients.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// identity is resolved once at connect time and immutable afterwards.
	identity session.Identity

	// send buffers outbound frames for the WritePump.
	send chan []byte

	// done signals both pumps to stop. Closed exactly once; the send channel
	// itself is never closed, so concurrent trySend calls cannot panic.
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewClient wraps an upgraded websocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, identity session.Identity) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Str("user_id", identity.UserID).
		Logger()

	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   clientLogger,
	}
}

// close marks the client dead. Safe to call from any goroutine, any number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// trySend queues a frame without blocking. A full buffer or a closed client
// counts as a delivery failure and the caller treats the connection as dead.
func (c *Client) trySend(payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send buffer full, dropping connection.")
		return errSendBufferFull
	}
}

// ReadPump reads frames off the websocket and feeds them to the message
// router. One goroutine per connection, so a single sender's events are
// processed in arrival order. Runs until the connection dies, then detaches
// the client from the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in ReadPump.")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.hub.router.Dispatch(ctx, c, frame)
	}
}

// WritePump drains the send buffer onto the websocket and keeps the
// heartbeat alive. Exits when the client is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump.")
		}
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing ping")
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing close frame")
			}
			return
		}
	}
}

// sendEvent marshals and queues an event for this connection only.
func (c *Client) sendEvent(event any) {
	payload, err := marshalEvent(event)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal event for client.")
		return
	}

	if err := c.trySend(payload); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue event for client.")
	}
}
