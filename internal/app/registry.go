package app

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyJoined = errors.New("connection already in a room")
)

type JoinResult struct {
	Room         domain.RoomID
	Participants []domain.Participant
	// IsInitiator is true for the participant that completed the pair.
	IsInitiator bool
}

type LeaveResult struct {
	Participant domain.Participant
	Remaining   []domain.Participant
	RoomDeleted bool
}

type RoomInfo struct {
	ID        domain.RoomID `json:"id"`
	Members   int           `json:"members"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Registry maps rooms to participants and participants to rooms.
// Mutations come from the hub goroutine; reads are safe from anywhere.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
	byID  map[domain.ParticipantID]domain.RoomID
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID]*domain.Room),
		byID:  make(map[domain.ParticipantID]domain.RoomID),
		now:   time.Now,
	}
}

func (r *Registry) Join(id domain.ParticipantID, roomID domain.RoomID, username string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byID[id]; ok {
		log.Warn().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(cur)).Msg("join while in a room")
		return JoinResult{}, ErrAlreadyJoined
	}

	room, ok := r.rooms[roomID]
	if ok && room.Full() {
		log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(roomID)).Msg("room full")
		return JoinResult{}, ErrRoomFull
	}
	if !ok {
		room = domain.NewRoom(roomID, r.now())
		r.rooms[roomID] = room
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("created room")
	}

	room.Participants = append(room.Participants, domain.Participant{ID: id, Username: username, RoomID: roomID})
	r.byID[id] = roomID
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(roomID)).Int("members", len(room.Participants)).Msg("joined")

	return JoinResult{
		Room:         roomID,
		Participants: slices.Clone(room.Participants),
		IsInitiator:  len(room.Participants) == domain.RoomCapacity,
	}, nil
}

// Leave removes id from its room. ok is false when id was not in any room.
func (r *Registry) Leave(id domain.ParticipantID) (res LeaveResult, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.byID[id]
	if !ok {
		return LeaveResult{}, false
	}
	delete(r.byID, id)

	room, exists := r.rooms[roomID]
	if !exists {
		return LeaveResult{}, false
	}
	for _, p := range room.Participants {
		if p.ID == id {
			res.Participant = p
			break
		}
	}
	room.Remove(id)
	res.Remaining = slices.Clone(room.Participants)
	if room.Empty() {
		delete(r.rooms, roomID)
		res.RoomDeleted = true
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("deleted empty room")
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(roomID)).Msg("left")
	return res, true
}

func (r *Registry) Get(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.byID[id]
	if !ok {
		return domain.Participant{}, false
	}
	for _, p := range r.rooms[roomID].Participants {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}

// CanJoin reports whether id could join roomID right now. A member
// rejoining its own room always can.
func (r *Registry) CanJoin(id domain.ParticipantID, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return true
	}
	return room.Has(id) || !room.Full()
}

// Peers returns the members sharing a room with id, id excluded.
func (r *Registry) Peers(id domain.ParticipantID) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.byID[id]
	if !ok {
		return nil
	}
	return r.rooms[roomID].Others(id)
}

func (r *Registry) Members(roomID domain.RoomID) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return slices.Clone(room.Participants)
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Registry) Snapshot() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomInfo{ID: id, Members: len(room.Participants), CreatedAt: room.CreatedAt})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
