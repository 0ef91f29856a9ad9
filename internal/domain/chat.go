package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxChatTextLen = 2000

var (
	ErrChatEmpty   = errors.New("chat message empty")
	ErrChatTooLong = errors.New("chat message too long")
)

// ChatMessage is broadcast to a room and never stored by the relay.
type ChatMessage struct {
	ID        string    `json:"id" msgpack:"id"`
	Username  string    `json:"username" msgpack:"username"`
	Text      string    `json:"text" msgpack:"text"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// NewChatMessage stamps text with a time-ordered id.
func NewChatMessage(username, text string, now time.Time) (ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return ChatMessage{}, ErrChatEmpty
	}
	if len(text) > MaxChatTextLen {
		return ChatMessage{}, ErrChatTooLong
	}
	id, err := uuid.NewV7()
	if err != nil {
		return ChatMessage{}, err
	}
	return ChatMessage{
		ID:        id.String(),
		Username:  username,
		Text:      text,
		Timestamp: now,
	}, nil
}
