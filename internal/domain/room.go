package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	// RoomCapacity is the hard limit of participants in a room.
	RoomCapacity = 2
	MaxRoomIDLen = 64
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

// Room keeps participants in join order.
type Room struct {
	ID           RoomID
	Participants []Participant
	CreatedAt    time.Time
}

func NewRoom(id RoomID, now time.Time) *Room {
	return &Room{ID: id, CreatedAt: now}
}

func (r *Room) Full() bool { return len(r.Participants) >= RoomCapacity }

func (r *Room) Empty() bool { return len(r.Participants) == 0 }

func (r *Room) indexOf(id ParticipantID) int {
	for i, p := range r.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) Has(id ParticipantID) bool { return r.indexOf(id) >= 0 }

// Remove drops the participant and reports whether it was present.
func (r *Room) Remove(id ParticipantID) bool {
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
	return true
}

// Others returns every participant except id.
func (r *Room) Others(id ParticipantID) []Participant {
	out := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func NormalizeRoomID(raw string) (RoomID, error) {
	id := strings.TrimSpace(raw)
	if len(id) == 0 {
		return "", ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(id), nil
}
