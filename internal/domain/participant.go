// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// ParticipantID is the opaque connection id the relay assigns to every socket.
type ParticipantID string

type Participant struct {
	ID       ParticipantID `json:"socketId"`
	Username string        `json:"username"`
	RoomID   RoomID        `json:"-"`
}

// NormalizeUsername trims the display name and checks its bounds.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}
