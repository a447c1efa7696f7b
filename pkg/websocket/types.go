package websocket

import (
	"context"
	"net/http"
	"time"

	"feedstate/pkg/backoff"

	"github.com/gorilla/websocket"
)

// MessageType represents a WebSocket message type.
// Values match RFC 6455 opcodes where applicable.
type MessageType int

const (
	// MessageText is a text data frame.
	MessageText MessageType = websocket.TextMessage
	// MessageBinary is a binary data frame.
	MessageBinary MessageType = websocket.BinaryMessage
	// MessageClose is a close control frame.
	MessageClose MessageType = websocket.CloseMessage
	// MessagePing is a ping control frame.
	MessagePing MessageType = websocket.PingMessage
	// MessagePong is a pong control frame.
	MessagePong MessageType = websocket.PongMessage
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 20 * time.Second
	DefaultReadTimeout      = 60 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReadQueueSize    = 256
)

// Option configures one session.
type Option struct {
	URL    string
	Header http.Header

	HandshakeTimeout time.Duration
	// PingInterval is the heartbeat cadence; zero disables the heartbeat.
	PingInterval time.Duration
	// PingPayload is sent as a text message on each heartbeat when set. Otherwise a
	// ping control frame is sent.
	PingPayload []byte
	// ReadTimeout closes the session when nothing (data or pong) arrives in time.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ReadQueueSize buffers frames between the read loop and Next.
	ReadQueueSize int

	// Backoff spaces dial attempts in Connect.
	Backoff backoff.Backoff
	// MaxDialAttempts bounds Connect; zero retries until the context ends.
	MaxDialAttempts int

	// OnConnect runs once after the handshake, e.g. to log in and subscribe.
	OnConnect func(ctx context.Context, s *Session) error
	// IsHeartbeat filters venue level heartbeat replies out of the data stream.
	IsHeartbeat func(payload []byte) bool
}

func (o *Option) applyDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadQueueSize <= 0 {
		o.ReadQueueSize = DefaultReadQueueSize
	}
	if o.Backoff.Min == 0 && o.Backoff.Max == 0 && o.Backoff.Factor == 0 && o.Backoff.Jitter == 0 {
		o.Backoff = backoff.Default()
	}
}
