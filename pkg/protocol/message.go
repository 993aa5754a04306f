// Package protocol defines the messages exchanged between the live client
// and the server.
package protocol

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// MessageType identifies the type of protocol message.
type MessageType uint8

const (
	// MsgJoin is sent by the client once the socket is open.
	MsgJoin MessageType = iota
	// MsgLeave is sent by the client before it closes the socket.
	MsgLeave
	// MsgEvent carries a user interaction.
	MsgEvent
	// MsgReply answers a client message carrying a Ref.
	MsgReply
	// MsgRender carries freshly rendered HTML.
	MsgRender
	// MsgError reports a session-level failure.
	MsgError
	// MsgHeartbeat keeps the connection alive.
	MsgHeartbeat
)

// String returns a string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MsgJoin:
		return "join"
	case MsgLeave:
		return "leave"
	case MsgEvent:
		return "event"
	case MsgReply:
		return "reply"
	case MsgRender:
		return "render"
	case MsgError:
		return "error"
	case MsgHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Message is one frame on the live connection.
type Message struct {
	// Type identifies what kind of message this is.
	Type MessageType `json:"t" msgpack:"t"`

	// Ref correlates a reply with the client message it answers.
	Ref string `json:"ref,omitempty" msgpack:"ref,omitempty"`

	// Event is the event name for MsgEvent.
	Event string `json:"event,omitempty" msgpack:"event,omitempty"`

	// Payload contains the message data.
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`

	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64 `json:"ts,omitempty" msgpack:"ts,omitempty"`
}

// NewMessage creates a new message with the given parameters.
func NewMessage(msgType MessageType, event string) *Message {
	return &Message{
		Type:      msgType,
		Event:     event,
		Payload:   make(map[string]any),
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithRef adds a reference ID to the message.
func (m *Message) WithRef(ref string) *Message {
	m.Ref = ref
	return m
}

// WithPayload sets the message payload.
func (m *Message) WithPayload(payload map[string]any) *Message {
	m.Payload = payload
	return m
}

// GetPayloadString retrieves a string value from the payload.
func (m *Message) GetPayloadString(key string) string {
	return PayloadString(m.Payload, key)
}

// IsReply returns true if this message is a reply.
func (m *Message) IsReply() bool {
	return m.Type == MsgReply
}

// IsError returns true if this message is an error.
func (m *Message) IsError() bool {
	return m.Type == MsgError
}

// IsHeartbeat returns true if this is a heartbeat message.
func (m *Message) IsHeartbeat() bool {
	return m.Type == MsgHeartbeat
}

// JoinMessage creates a join message.
func JoinMessage(params map[string]any) *Message {
	return NewMessage(MsgJoin, "join").WithPayload(params)
}

// EventMessage creates an event message.
func EventMessage(event string, payload map[string]any) *Message {
	return NewMessage(MsgEvent, event).WithPayload(payload)
}

// RenderMessage carries the rendered HTML of a component.
func RenderMessage(html string) *Message {
	return NewMessage(MsgRender, "render").WithPayload(map[string]any{"html": html})
}

// OkReply creates a successful reply message.
func OkReply(ref string, response map[string]any) *Message {
	return NewMessage(MsgReply, "reply").
		WithRef(ref).
		WithPayload(map[string]any{"status": StatusOK, "response": response})
}

// ErrorReply creates an error reply message.
func ErrorReply(ref, reason string) *Message {
	return NewMessage(MsgReply, "reply").
		WithRef(ref).
		WithPayload(map[string]any{"status": StatusError, "response": map[string]any{"reason": reason}})
}

// ErrorMessage reports a session-level failure.
func ErrorMessage(reason string) *Message {
	return NewMessage(MsgError, "error").WithPayload(map[string]any{"reason": reason})
}

// HeartbeatMessage creates a heartbeat message.
func HeartbeatMessage() *Message {
	return NewMessage(MsgHeartbeat, "heartbeat")
}

// PayloadString returns payload[key] as a string. Numbers and booleans are
// formatted; anything else yields "".
func PayloadString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		if n, ok := toFloat(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return ""
	}
}

// PayloadInt returns payload[key] as an int. JSON numbers decode as float64
// and MessagePack integers as any sized int, so every numeric kind is
// accepted, as are numeric strings.
func PayloadInt(payload map[string]any, key string) (int, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("payload: missing %q", key)
	}
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("payload: %q is not an integer", key)
		}
		return n, nil
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("payload: %q is not an integer", key)
	}
	return int(f), nil
}

// PayloadFloat returns payload[key] as a float64.
func PayloadFloat(payload map[string]any, key string) (float64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("payload: missing %q", key)
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("payload: %q is not a number", key)
		}
		return f, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("payload: %q is not a number", key)
	}
	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
