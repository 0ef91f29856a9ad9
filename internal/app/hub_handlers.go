package app

import (
	"errors"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	msgBadRequest   = "Invalid request"
	msgRoomFull     = "Room is full! Maximum 2 users allowed."
	msgRateLimited  = "Too many join attempts, try again later"
	msgChatTooLong  = "Message is too long"
	msgRoomRequired = "Room code is required"
	msgRoomTooLong  = "Room code is too long"
	msgNameRequired = "Username is required"
	msgNameTooLong  = "Username is too long"
)

func (h *Hub) handleJoin(id domain.ParticipantID, env protocol.Envelope) {
	var p protocol.JoinRoom
	if err := env.DecodePayload(&p); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("sid", string(id)).Msg("bad join payload")
		h.sendError(id, msgBadRequest)
		return
	}
	if !h.Limiter.Allow(id) {
		log.Warn().Str("module", "app.hub").Str("sid", string(id)).Msg("join rate limited")
		h.sendError(id, msgRateLimited)
		return
	}

	roomID, err := domain.NormalizeRoomID(p.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomIDTooLong) {
			h.sendError(id, msgRoomTooLong)
		} else {
			h.sendError(id, msgRoomRequired)
		}
		return
	}
	name, err := domain.NormalizeUsername(p.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUsernameTooLong) {
			h.sendError(id, msgNameTooLong)
		} else {
			h.sendError(id, msgNameRequired)
		}
		return
	}

	// A rejected rejoin must not touch the room the connection is in.
	if !h.Registry.CanJoin(id, roomID) {
		log.Info().Str("module", "app.hub").Str("sid", string(id)).Str("room", string(roomID)).Msg("join rejected, room full")
		h.sendError(id, msgRoomFull)
		return
	}
	// A connection belongs to at most one room.
	h.leave(id)

	res, err := h.Registry.Join(id, roomID, name)
	if err != nil {
		if errors.Is(err, ErrRoomFull) {
			h.sendError(id, msgRoomFull)
			return
		}
		log.Error().Err(err).Str("module", "app.hub").Str("sid", string(id)).Msg("join")
		h.sendError(id, msgBadRequest)
		return
	}

	for _, other := range h.Registry.Peers(id) {
		h.send(other.ID, protocol.TypeUserJoined, protocol.UserEvent{Username: name, SocketID: id})
	}
	h.send(id, protocol.TypeRoomJoined, protocol.RoomJoined{
		RoomID:      string(res.Room),
		Users:       protocol.Users(res.Participants),
		IsInitiator: res.IsInitiator,
	})
}

func (h *Hub) handleSignal(id domain.ParticipantID, env protocol.Envelope) {
	sender, ok := h.Registry.Get(id)
	if !ok {
		return
	}
	var p protocol.SignalRequest
	if err := env.DecodePayload(&p); err != nil || len(p.Signal) == 0 {
		log.Warn().Err(err).Str("module", "app.hub").Str("sid", string(id)).Msg("bad signal payload")
		return
	}

	fwd := protocol.SignalForward{Signal: p.Signal, FromSocketID: id, FromUsername: sender.Username}
	peers := h.Registry.Peers(id)
	kind := protocol.SignalKindOf(p.Signal)

	if p.TargetSocketID != "" {
		for _, m := range peers {
			if m.ID == p.TargetSocketID {
				log.Debug().Str("module", "app.hub").Str("from", string(id)).Str("to", string(m.ID)).Str("kind", string(kind)).Msg("relay signal")
				h.send(m.ID, protocol.TypeSignal, fwd)
				return
			}
		}
		log.Debug().Str("module", "app.hub").Str("from", string(id)).Str("to", string(p.TargetSocketID)).Msg("signal target not in room")
		return
	}

	for _, m := range peers {
		log.Debug().Str("module", "app.hub").Str("from", string(id)).Str("to", string(m.ID)).Str("kind", string(kind)).Msg("relay signal")
		h.send(m.ID, protocol.TypeSignal, fwd)
	}
}

func (h *Hub) handleChat(id domain.ParticipantID, env protocol.Envelope) {
	sender, ok := h.Registry.Get(id)
	if !ok {
		return
	}
	var p protocol.ChatRequest
	if err := env.DecodePayload(&p); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("sid", string(id)).Msg("bad chat payload")
		return
	}
	msg, err := domain.NewChatMessage(sender.Username, p.Message, h.now())
	switch {
	case errors.Is(err, domain.ErrChatEmpty):
		return
	case errors.Is(err, domain.ErrChatTooLong):
		h.sendError(id, msgChatTooLong)
		return
	case err != nil:
		log.Error().Err(err).Str("module", "app.hub").Msg("chat message")
		return
	}

	for _, m := range h.Registry.Members(sender.RoomID) {
		h.send(m.ID, protocol.TypeChat, msg)
	}
}

// leave removes id from its room and tells whoever stays behind.
func (h *Hub) leave(id domain.ParticipantID) {
	res, ok := h.Registry.Leave(id)
	if !ok {
		return
	}
	ev := protocol.UserEvent{Username: res.Participant.Username, SocketID: id}
	for _, m := range res.Remaining {
		h.send(m.ID, protocol.TypeUserLeft, ev)
	}
}
