package negotiation

import (
	"errors"
	"time"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/dkeye/Duet/internal/signaling"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// handler feeds relay events into the session.
type handler struct{ s *Session }

func (h handler) OnConnected() {
	log.Debug().Str("module", "negotiation").Msg("relay connected")
}

func (h handler) OnRoomJoined(p protocol.RoomJoined) {
	s := h.s
	s.mu.Lock()
	s.isInitiator = p.IsInitiator
	// The relay appends the joiner last.
	if n := len(p.Users); n > 0 {
		s.selfID = p.Users[n-1].SocketID
		if n > 1 && s.remoteID == "" {
			s.remoteID = p.Users[0].SocketID
		}
	}
	remote := s.remoteID
	if p.IsInitiator && !s.ended {
		s.offerTimer = time.AfterFunc(s.cfg.InitiatorDelay, s.createOffer)
	}
	s.mu.Unlock()

	log.Info().Str("module", "negotiation").Str("room", p.RoomID).Bool("initiator", p.IsInitiator).Str("remote", string(remote)).Msg("room joined")
}

func (h handler) OnUserJoined(ev protocol.UserEvent) {
	h.s.learnRemote(ev.SocketID)
	log.Info().Str("module", "negotiation").Str("username", ev.Username).Msg("peer joined")
}

func (h handler) OnUserLeft(ev protocol.UserEvent) {
	log.Info().Str("module", "negotiation").Str("username", ev.Username).Msg("peer left")
	h.s.transition(Disconnected, "peer left")
}

func (h handler) OnSignal(p protocol.SignalForward) {
	h.s.handleSignal(p)
}

func (h handler) OnChat(msg protocol.ChatMessage) {
	h.s.deliverChat(msg)
}

func (h handler) OnError(err error) {
	s := h.s
	s.reportSignalingError(err)
	var relayErr *signaling.RelayError
	if errors.As(err, &relayErr) && s.Phase() == Connecting {
		s.transition(Disconnected, "relay error")
	}
}

func (h handler) OnDisconnected(err error) {
	if err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("relay connection lost")
	}
}

func (s *Session) learnRemote(id domain.ParticipantID) {
	if id == "" {
		return
	}
	s.mu.Lock()
	if s.remoteID == "" && id != s.selfID {
		s.remoteID = id
	}
	s.mu.Unlock()
}

// usablePeer returns the peer unless the session is over.
func (s *Session) usablePeer() (peerAndTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended || s.peer == nil || s.phase == Disconnected {
		return peerAndTarget{}, false
	}
	return peerAndTarget{peer: s.peer, target: s.remoteID}, true
}

func (s *Session) createOffer() {
	s.negMu.Lock()
	defer s.negMu.Unlock()

	pt, ok := s.usablePeer()
	if !ok {
		return
	}
	dc, err := pt.peer.CreateDataChannel(DataChannelLabel)
	if err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("create data channel")
		return
	}
	s.attachDataChannel(dc)

	offer, err := pt.peer.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("create offer")
		return
	}
	if err := pt.peer.SetLocalDescription(offer); err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("set local offer")
		return
	}
	sig := protocol.Signal{Type: protocol.SignalOffer, SDP: fromPionDescription(offer)}
	if err := s.cfg.Signaler.SendSignal(pt.target, sig); err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("send offer")
		return
	}
	log.Info().Str("module", "negotiation").Str("to", string(pt.target)).Msg("offer sent")
}

func (s *Session) handleSignal(p protocol.SignalForward) {
	sig, err := protocol.ParseSignal(p.Signal)
	if err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Str("from", string(p.FromSocketID)).Msg("malformed signal dropped")
		return
	}
	s.learnRemote(p.FromSocketID)

	s.negMu.Lock()
	defer s.negMu.Unlock()

	pt, ok := s.usablePeer()
	if !ok {
		return
	}
	switch sig.Type {
	case protocol.SignalOffer:
		s.applyOffer(pt, p.FromSocketID, sig.SDP)
	case protocol.SignalAnswer:
		s.applyAnswer(pt, sig.SDP)
	case protocol.SignalCandidate:
		s.applyCandidate(pt, toPionCandidate(sig.Candidate))
	}
}

func (s *Session) applyOffer(pt peerAndTarget, from domain.ParticipantID, sdp *protocol.SessionDescription) {
	if err := pt.peer.SetRemoteDescription(toPionDescription(sdp)); err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("apply offer")
		return
	}
	s.remoteApplied(pt)

	answer, err := pt.peer.CreateAnswer()
	if err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("create answer")
		return
	}
	if err := pt.peer.SetLocalDescription(answer); err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("set local answer")
		return
	}
	sig := protocol.Signal{Type: protocol.SignalAnswer, SDP: fromPionDescription(answer)}
	if err := s.cfg.Signaler.SendSignal(from, sig); err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("send answer")
		return
	}
	log.Info().Str("module", "negotiation").Str("to", string(from)).Msg("answer sent")
}

func (s *Session) applyAnswer(pt peerAndTarget, sdp *protocol.SessionDescription) {
	if err := pt.peer.SetRemoteDescription(toPionDescription(sdp)); err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("apply answer")
		return
	}
	s.remoteApplied(pt)
	log.Info().Str("module", "negotiation").Msg("answer applied")
}

// applyCandidate queues c until a remote description exists.
func (s *Session) applyCandidate(pt peerAndTarget, c webrtc.ICECandidateInit) {
	if !s.remoteSet {
		s.pending = append(s.pending, c)
		log.Debug().Str("module", "negotiation").Int("queued", len(s.pending)).Msg("candidate buffered")
		return
	}
	if err := pt.peer.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("add candidate")
	}
}

// remoteApplied flushes buffered candidates in arrival order.
func (s *Session) remoteApplied(pt peerAndTarget) {
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if err := pt.peer.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "negotiation").Msg("add buffered candidate")
		}
	}
	if len(pending) > 0 {
		log.Debug().Str("module", "negotiation").Int("flushed", len(pending)).Msg("candidates flushed")
	}
}

func (s *Session) onLocalCandidate(c webrtc.ICECandidateInit) {
	s.mu.Lock()
	target, ended := s.remoteID, s.ended
	s.mu.Unlock()
	if ended {
		return
	}
	sig := protocol.Signal{Type: protocol.SignalCandidate, Candidate: fromPionCandidate(c)}
	if err := s.cfg.Signaler.SendSignal(target, sig); err != nil {
		log.Debug().Err(err).Str("module", "negotiation").Msg("send candidate")
	}
}
