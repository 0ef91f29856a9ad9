package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrHubStopped = errors.New("hub stopped")

type eventKind int

const (
	evRegister eventKind = iota
	evFrame
	evUnregister
)

type event struct {
	kind  eventKind
	id    domain.ParticipantID
	conn  core.SignalConnection
	frame core.Frame
}

// Hub owns relay event processing. Every inbound event of every
// connection is handled to completion on the Run goroutine.
type Hub struct {
	Registry *Registry
	Policy   Policy
	Limiter  *RateLimiter

	conns  map[domain.ParticipantID]core.SignalConnection
	events chan event
	done   chan struct{}
	now    func() time.Time
}

func NewHub(reg *Registry, policy Policy, limiter *RateLimiter) *Hub {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Hub{
		Registry: reg,
		Policy:   policy,
		Limiter:  limiter,
		conns:    make(map[domain.ParticipantID]core.SignalConnection),
		events:   make(chan event, 256),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Run processes events until ctx is canceled, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	log.Info().Str("module", "app.hub").Msg("hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, conn := range h.conns {
				conn.Close()
				delete(h.conns, id)
			}
			log.Info().Str("module", "app.hub").Msg("hub stopped")
			return nil
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

func (h *Hub) Register(id domain.ParticipantID, conn core.SignalConnection) error {
	return h.enqueue(event{kind: evRegister, id: id, conn: conn})
}

// Dispatch hands one inbound frame of connection id to the hub.
func (h *Hub) Dispatch(id domain.ParticipantID, frame core.Frame) error {
	return h.enqueue(event{kind: evFrame, id: id, frame: frame})
}

func (h *Hub) Unregister(id domain.ParticipantID) error {
	return h.enqueue(event{kind: evUnregister, id: id})
}

func (h *Hub) enqueue(ev event) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case evRegister:
		h.conns[ev.id] = ev.conn
		log.Info().Str("module", "app.hub").Str("sid", string(ev.id)).Int("connections", len(h.conns)).Msg("connection registered")
	case evUnregister:
		h.leave(ev.id)
		delete(h.conns, ev.id)
		h.Limiter.Forget(ev.id)
		log.Info().Str("module", "app.hub").Str("sid", string(ev.id)).Int("connections", len(h.conns)).Msg("connection unregistered")
	case evFrame:
		h.handleFrame(ev.id, ev.frame)
	}
}

func (h *Hub) handleFrame(id domain.ParticipantID, frame core.Frame) {
	if _, ok := h.conns[id]; !ok {
		log.Warn().Str("module", "app.hub").Str("sid", string(id)).Msg("frame from unregistered connection")
		return
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("sid", string(id)).Msg("bad frame")
		return
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		h.handleJoin(id, env)
	case protocol.TypeSignal:
		h.handleSignal(id, env)
	case protocol.TypeChat:
		h.handleChat(id, env)
	case protocol.TypeLeaveRoom:
		h.leave(id)
	default:
		log.Warn().Str("module", "app.hub").Str("sid", string(id)).Str("type", env.Type).Msg("unknown event")
	}
}

func (h *Hub) send(to domain.ParticipantID, typ string, payload any) {
	conn, ok := h.conns[to]
	if !ok {
		return
	}
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("type", typ).Msg("encode")
		return
	}
	err = conn.TrySend(frame)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrBackpressure):
		p, _ := h.Registry.Get(to)
		p.ID = to
		switch h.Policy.OnBackPressure(p, typ) {
		case KickMember:
			log.Warn().Str("module", "app.hub").Str("sid", string(to)).Str("type", typ).Msg("send queue full, disconnecting")
			// The transport unregisters the connection once its read pump stops.
			conn.Close()
		case DropFrame:
			log.Warn().Str("module", "app.hub").Str("sid", string(to)).Str("type", typ).Msg("send queue full, frame dropped")
		}
	default:
		log.Debug().Err(err).Str("module", "app.hub").Str("sid", string(to)).Msg("send failed")
	}
}

func (h *Hub) sendError(to domain.ParticipantID, msg string) {
	h.send(to, protocol.TypeError, protocol.Error{Message: msg})
}
