// Package protocol defines the messages exchanged between the intake page
// and the live session server.
package protocol

import (
	"strconv"
	"time"
)

// MessageType identifies the type of protocol message.
type MessageType uint8

const (
	// MsgJoin is sent by the client when it connects or reconnects.
	MsgJoin MessageType = iota
	// MsgEvent carries a user interaction (update, toggle, next, back, ...).
	MsgEvent
	// MsgRender carries freshly rendered HTML.
	MsgRender
	// MsgReply acknowledges a client message.
	MsgReply
	// MsgError reports a failure to handle a client message.
	MsgError
	// MsgHeartbeat keeps the connection alive.
	MsgHeartbeat
	// MsgCommand asks the client to perform a presentation side effect,
	// e.g. resetting the scroll position.
	MsgCommand
)

// String returns a string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MsgJoin:
		return "join"
	case MsgEvent:
		return "event"
	case MsgRender:
		return "render"
	case MsgReply:
		return "reply"
	case MsgError:
		return "error"
	case MsgHeartbeat:
		return "heartbeat"
	case MsgCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Message is one protocol frame.
type Message struct {
	Type MessageType `json:"t" msgpack:"t"`

	// Ref correlates a reply with the client message it answers.
	Ref string `json:"ref,omitempty" msgpack:"ref,omitempty"`

	// Topic is the session the message belongs to.
	Topic string `json:"topic" msgpack:"topic"`

	Event   string         `json:"event,omitempty" msgpack:"event,omitempty"`
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`

	Timestamp int64 `json:"ts,omitempty" msgpack:"ts,omitempty"`
}

// NewMessage creates a new message with the given parameters.
func NewMessage(msgType MessageType, topic, event string) *Message {
	return &Message{
		Type:      msgType,
		Topic:     topic,
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
	if m.Payload == nil {
		return ""
	}
	switch v := m.Payload[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int8:
		return strconv.Itoa(int(v))
	case uint8:
		return strconv.Itoa(int(v))
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// GetPayloadInt retrieves an int value from the payload. Decoders produce
// float64 (JSON) or sized integers (msgpack); all are accepted.
func (m *Message) GetPayloadInt(key string) int {
	if m.Payload == nil {
		return 0
	}
	switch v := m.Payload[key].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// JoinMessage creates a join message.
func JoinMessage(topic string, params map[string]any) *Message {
	return NewMessage(MsgJoin, topic, "join").WithPayload(params)
}

// EventMessage creates an event message.
func EventMessage(topic, event string, payload map[string]any) *Message {
	return NewMessage(MsgEvent, topic, event).WithPayload(payload)
}

// RenderMessage carries the rendered HTML of a component.
func RenderMessage(topic, html string) *Message {
	return NewMessage(MsgRender, topic, "render").WithPayload(map[string]any{
		"html": html,
	})
}

// CommandMessage asks the client to run the named presentation command.
func CommandMessage(topic, name string, args map[string]any) *Message {
	return NewMessage(MsgCommand, topic, name).WithPayload(args)
}

// OkReply creates a successful reply message.
func OkReply(ref, topic string, response map[string]any) *Message {
	return NewMessage(MsgReply, topic, "reply").
		WithRef(ref).
		WithPayload(map[string]any{"status": "ok", "response": response})
}

// ErrorReply creates an error reply message.
func ErrorReply(ref, topic, reason string) *Message {
	return NewMessage(MsgError, topic, "error").
		WithRef(ref).
		WithPayload(map[string]any{"status": "error", "reason": reason})
}

// HeartbeatMessage creates a heartbeat message.
func HeartbeatMessage() *Message {
	return NewMessage(MsgHeartbeat, "", "heartbeat")
}
