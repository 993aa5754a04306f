package protocol

import (
	"errors"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Common codec errors.
var (
	ErrInvalidMessage = errors.New("invalid message format")
	ErrUnknownCodec   = errors.New("unknown codec type")
)

// Subprotocol prefix; a codec named "json" is negotiated as "applyform.json".
const SubprotocolPrefix = "applyform."

// Codec handles message encoding/decoding.
type Codec interface {
	// Encode serializes a message to bytes.
	Encode(msg *Message) ([]byte, error)

	// Decode deserializes bytes to a message.
	Decode(data []byte) (*Message, error)

	// Name returns the codec name.
	Name() string

	// Binary reports whether frames must be sent as binary messages.
	Binary() bool
}

// Subprotocol returns the WebSocket subprotocol negotiating c.
func Subprotocol(c Codec) string {
	return SubprotocolPrefix + c.Name()
}

// JSONCodec implements Codec using JSON encoding. Browsers use it.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode encodes a message to JSON.
func (c *JSONCodec) Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode decodes JSON to a message.
func (c *JSONCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	return &msg, nil
}

// Name returns "json".
func (c *JSONCodec) Name() string {
	return "json"
}

func (c *JSONCodec) Binary() bool { return false }

// MsgPackCodec implements Codec using MessagePack encoding.
type MsgPackCodec struct{}

// NewMsgPackCodec creates a new MsgPack codec.
func NewMsgPackCodec() *MsgPackCodec {
	return &MsgPackCodec{}
}

// Encode encodes a message to MsgPack.
func (c *MsgPackCodec) Encode(msg *Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

// Decode decodes MsgPack to a message.
func (c *MsgPackCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	return &msg, nil
}

// Name returns "msgpack".
func (c *MsgPackCodec) Name() string {
	return "msgpack"
}

func (c *MsgPackCodec) Binary() bool { return true }

// CodecRegistry manages available codecs.
type CodecRegistry struct {
	codecs   map[string]Codec
	order    []string
	fallback Codec
	mu       sync.RWMutex
}

// NewCodecRegistry creates a registry holding the JSON and MessagePack
// codecs, with JSON as the default.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[string]Codec)}
	r.Register(NewJSONCodec())
	r.Register(NewMsgPackCodec())
	r.fallback = r.codecs["json"]
	return r
}

// Register adds a codec to the registry.
func (r *CodecRegistry) Register(codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codecs[codec.Name()]; !ok {
		r.order = append(r.order, codec.Name())
	}
	r.codecs[codec.Name()] = codec
}

// Get retrieves a codec by name.
func (r *CodecRegistry) Get(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	return c, ok
}

// Default returns the codec used when the client negotiates none.
func (r *CodecRegistry) Default() Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// SetDefault sets the default codec.
func (r *CodecRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codecs[name]
	if !ok {
		return ErrUnknownCodec
	}
	r.fallback = c
	return nil
}

// Subprotocols lists the subprotocols of every registered codec, default first.
func (r *CodecRegistry) Subprotocols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{Subprotocol(r.fallback)}
	for _, name := range r.order {
		if name != r.fallback.Name() {
			out = append(out, SubprotocolPrefix+name)
		}
	}
	return out
}

// ForSubprotocol returns the codec negotiated by a subprotocol; "" selects
// the default.
func (r *CodecRegistry) ForSubprotocol(sub string) (Codec, error) {
	if sub == "" {
		return r.Default(), nil
	}
	if len(sub) <= len(SubprotocolPrefix) || sub[:len(SubprotocolPrefix)] != SubprotocolPrefix {
		return nil, ErrUnknownCodec
	}
	c, ok := r.Get(sub[len(SubprotocolPrefix):])
	if !ok {
		return nil, ErrUnknownCodec
	}
	return c, nil
}
