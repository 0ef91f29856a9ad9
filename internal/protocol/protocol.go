// Package protocol defines the relay wire format shared by the relay and its clients.
//
// Every frame is a JSON text message of the form {"type": <event>, "payload": {...}}.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Duet/internal/domain"
)

// Client to relay events.
const (
	TypeJoinRoom  = "join-room"
	TypeLeaveRoom = "leave-room"
	TypeSignal    = "webrtc-signal"
	TypeChat      = "chat-message"
)

// Relay to client events. TypeSignal and TypeChat are used in both directions.
const (
	TypeRoomJoined = "room-joined"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypeError      = "error"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps payload into an envelope frame.
func Encode(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("missing event type")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into v. An absent payload leaves v untouched.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type User struct {
	SocketID domain.ParticipantID `json:"socketId"`
	Username string               `json:"username"`
}

type RoomJoined struct {
	RoomID      string `json:"roomId"`
	Users       []User `json:"users"`
	IsInitiator bool   `json:"isInitiator"`
}

// UserEvent is the payload of user-joined and user-left.
type UserEvent struct {
	Username string               `json:"username"`
	SocketID domain.ParticipantID `json:"socketId"`
}

type Error struct {
	Message string `json:"message"`
}

type SignalRequest struct {
	RoomID         string               `json:"roomId,omitempty"`
	TargetSocketID domain.ParticipantID `json:"targetSocketId,omitempty"`
	Signal         json.RawMessage      `json:"signal"`
}

type SignalForward struct {
	Signal       json.RawMessage      `json:"signal"`
	FromSocketID domain.ParticipantID `json:"fromSocketId"`
	FromUsername string               `json:"fromUsername"`
}

type ChatRequest struct {
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message"`
}

type ChatMessage = domain.ChatMessage

func Users(ps []domain.Participant) []User {
	out := make([]User, 0, len(ps))
	for _, p := range ps {
		out = append(out, User{SocketID: p.ID, Username: p.Username})
	}
	return out
}
