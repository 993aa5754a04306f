package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/gabrielmiguelok/applyform/pkg/logging"
	"github.com/gabrielmiguelok/applyform/pkg/protocol"
)

// WebSocket implements Transport on a coder/websocket connection.
type WebSocket struct {
	conn   *websocket.Conn
	codec  protocol.Codec
	config Config
	logger logging.Logger

	sendCh    chan *protocol.Message
	recvCh    chan *protocol.Message
	closeCh   chan struct{}
	closeOnce sync.Once
}

// Accept upgrades an HTTP request (server side). The origin is checked
// before the handshake and the codec is chosen from the client's
// subprotocols.
func Accept(w http.ResponseWriter, r *http.Request, config Config, logger logging.Logger) (*WebSocket, error) {
	if !isOriginAllowed(r.Header.Get("Origin"), r.Host, config.AllowedOrigins) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return nil, ErrOriginNotAllowed
	}

	codecs := config.codecs()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: codecs.Subprotocols(),
		// Origin was validated above against AllowedOrigins.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, fmt.Errorf("accept websocket: %w", err)
	}

	codec, err := codecs.ForSubprotocol(conn.Subprotocol())
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "unsupported subprotocol")
		return nil, err
	}
	return newWebSocket(conn, codec, config, logger), nil
}

// Dial connects to a live endpoint (client side), requesting codecName.
func Dial(ctx context.Context, rawURL, codecName string, config Config, logger logging.Logger) (*WebSocket, error) {
	codec, ok := config.codecs().Get(codecName)
	if !ok {
		return nil, protocol.ErrUnknownCodec
	}
	conn, _, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{
		Subprotocols: []string{protocol.Subprotocol(codec)},
	})
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return newWebSocket(conn, codec, config, logger), nil
}

func newWebSocket(conn *websocket.Conn, codec protocol.Codec, config Config, logger logging.Logger) *WebSocket {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}

	t := &WebSocket{
		conn:    conn,
		codec:   codec,
		config:  config,
		logger:  logger,
		sendCh:  make(chan *protocol.Message, config.BufferSize),
		recvCh:  make(chan *protocol.Message, config.BufferSize),
		closeCh: make(chan struct{}),
	}
	go t.readLoop()
	go t.writeLoop()
	if config.PingInterval > 0 {
		go t.pingLoop()
	}
	return t
}

// Codec returns the negotiated codec.
func (t *WebSocket) Codec() protocol.Codec {
	return t.codec
}

// Send queues a message, waiting at most WriteTimeout for queue space.
func (t *WebSocket) Send(msg *protocol.Message) error {
	select {
	case <-t.closeCh:
		return ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(t.writeTimeout())
	defer timer.Stop()
	select {
	case t.sendCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Receive returns the incoming message channel.
func (t *WebSocket) Receive() <-chan *protocol.Message {
	return t.recvCh
}

// Done is closed when the connection is closed.
func (t *WebSocket) Done() <-chan struct{} {
	return t.closeCh
}

// Close closes the connection. It is safe to call more than once.
func (t *WebSocket) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		err = t.conn.Close(websocket.StatusNormalClosure, "closing")
	})
	return err
}

func (t *WebSocket) readLoop() {
	defer close(t.recvCh)
	defer t.Close()

	for {
		ctx := context.Background()
		cancel := context.CancelFunc(func() {})
		if t.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, t.config.ReadTimeout)
		}
		_, data, err := t.conn.Read(ctx)
		cancel()
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				t.logger.Debug("websocket read ended", logging.Err(err))
			}
			return
		}

		msg, err := t.codec.Decode(data)
		if err != nil {
			t.logger.Debug("dropping undecodable frame", logging.Err(err))
			continue
		}

		select {
		case t.recvCh <- msg:
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocket) writeLoop() {
	typ := websocket.MessageText
	if t.codec.Binary() {
		typ = websocket.MessageBinary
	}

	for {
		select {
		case msg := <-t.sendCh:
			data, err := t.codec.Encode(msg)
			if err != nil {
				t.logger.Warn("dropping unencodable message", logging.Err(err))
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout())
			err = t.conn.Write(ctx, typ, data)
			cancel()
			if err != nil {
				t.logger.Debug("websocket write failed", logging.Err(err))
				t.Close()
				return
			}
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocket) pingLoop() {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout())
			err := t.conn.Ping(ctx)
			cancel()
			if err != nil {
				t.Close()
				return
			}
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocket) writeTimeout() time.Duration {
	if t.config.WriteTimeout > 0 {
		return t.config.WriteTimeout
	}
	return DefaultConfig().WriteTimeout
}

// isOriginAllowed accepts empty and same-host origins, then the allow-list.
func isOriginAllowed(origin, requestHost string, allowed []string) bool {
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Host == requestHost {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if allowedURL, err := url.Parse(a); err == nil && allowedURL.Host != "" && allowedURL.Host == originURL.Host {
			return true
		}
	}
	return false
}
