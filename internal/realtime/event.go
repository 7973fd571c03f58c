package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags every envelope on the wire.
type EventType string

// Client-to-server events.
const (
	EventIdentify    EventType = "identify"
	EventJoinRoom    EventType = "join-room"
	EventLeaveRoom   EventType = "leave-room"
	EventRoomMessage EventType = "room-message"
	EventTypingStart EventType = "typing-start"
	EventTypingStop  EventType = "typing-stop"
)

// Server-to-client events.
const (
	EventPresenceOnline    EventType = "presence-online"
	EventPresenceOffline   EventType = "presence-offline"
	EventNewMessage        EventType = "new-message"
	EventUserTyping        EventType = "user-typing"
	EventUserStoppedTyping EventType = "user-stopped-typing"
	EventReactionChanged   EventType = "reaction-changed"
	EventError             EventType = "error"
)

// Envelope is the single fixed-schema frame both directions use:
// a type tag, the room it concerns (when any), and a typed payload.
type Envelope struct {
	Type    EventType       `json:"type"`
	RoomKey string          `json:"roomKey,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an outbound envelope, marshaling the payload.
func NewEnvelope(t EventType, roomKey string, payload any) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		raw = b
	}
	return Envelope{Type: t, RoomKey: roomKey, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Payload shapes.

// IdentifyPayload binds a connection to a user. The id must match the
// identity verified at the handshake.
type IdentifyPayload struct {
	UserID int64 `json:"userId"`
}

// PresencePayload announces an online/offline transition.
type PresencePayload struct {
	UserID int64  `json:"userId"`
	Status string `json:"status"`
}

// RoomMessagePayload is an inbound write: new message text and/or file for
// the envelope's room.
type RoomMessagePayload struct {
	Content string `json:"content"`
	FileURL string `json:"fileUrl"`
}

// TypingPayload announces who is typing in the envelope's room. ExpiresAt
// tells receivers when to clear the flag locally if no refresh or stop
// arrives; an explicit stop is never required.
type TypingPayload struct {
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// ReactionChangedPayload announces a reaction toggle outcome.
type ReactionChangedPayload struct {
	MessageID int64  `json:"messageId"`
	UserID    int64  `json:"userId"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"` // "added" or "removed"
}

// ErrorPayload reports a rejected inbound event back to its sender.
type ErrorPayload struct {
	Error string `json:"error"`
}
