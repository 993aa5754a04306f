// Package transport carries protocol messages between the browser and a
// live session over WebSocket.
package transport

import (
	"errors"
	"time"

	"github.com/gabrielmiguelok/applyform/pkg/protocol"
)

// Common transport errors.
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrOriginNotAllowed = errors.New("origin not allowed")
)

// Transport is a message-oriented, full-duplex connection.
type Transport interface {
	// Send queues a message for delivery.
	Send(msg *protocol.Message) error

	// Receive returns a channel of decoded incoming messages. It is closed
	// when the connection ends.
	Receive() <-chan *protocol.Message

	// Done is closed once the connection is closed.
	Done() <-chan struct{}

	// Close terminates the connection.
	Close() error

	// Codec returns the negotiated codec.
	Codec() protocol.Codec
}

// Config configures a connection.
type Config struct {
	// ReadTimeout closes a connection that sends nothing for this long.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// PingInterval is the period of WebSocket pings.
	PingInterval time.Duration

	// MaxMessageSize limits incoming frames.
	MaxMessageSize int64

	// BufferSize is the capacity of the send and receive queues.
	BufferSize int

	// AllowedOrigins lists cross-origin hosts allowed to connect. Same-origin
	// requests are always allowed; "*" allows every origin.
	AllowedOrigins []string

	// Codecs negotiates the wire format. Nil uses protocol.NewCodecRegistry().
	Codecs *protocol.CodecRegistry
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		BufferSize:     32,
	}
}

func (c Config) codecs() *protocol.CodecRegistry {
	if c.Codecs != nil {
		return c.Codecs
	}
	return protocol.NewCodecRegistry()
}
