// Package negotiation drives one two-party peer connection from room join
// to teardown: role-based offer/answer, trickle ICE and chat.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/media"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInitiatorDelay = time.Second
	DataChannelLabel      = "messages"
)

var (
	ErrNoLocalMedia   = errors.New("local media not acquired")
	ErrAlreadyStarted = errors.New("session already started")
	ErrSessionEnded   = errors.New("session ended")
	ErrNotStarted     = errors.New("session not started")
)

type Config struct {
	Signaler Signaler
	Devices  media.Devices
	NewPeer  func() (core.PeerConnection, error)
	// InitiatorDelay lets the other side finish setting up before the offer.
	InitiatorDelay time.Duration
	ChatTransport  string
}

type Callbacks struct {
	OnRemoteStream func(*media.RemoteStream)
	OnMessage      func(protocol.ChatMessage)
	OnStateChange  func(Phase)
}

// Session is one attempt at a call. Once Disconnected it cannot be reused.
type Session struct {
	cfg Config

	// negMu serializes every operation on the peer's descriptions and candidates.
	negMu     sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	// mu guards the fields below. Never held while calling into the peer.
	mu          sync.Mutex
	phase       Phase
	callbacks   Callbacks
	stream      *media.Stream
	peer        core.PeerConnection
	dc          core.DataChannel
	chat        ChatTransport
	selfID      domain.ParticipantID
	remoteID    domain.ParticipantID
	username    string
	isInitiator bool
	offerTimer  *time.Timer
	onSigError  func(error)
	ended       bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config) *Session {
	if cfg.InitiatorDelay <= 0 {
		cfg.InitiatorDelay = DefaultInitiatorDelay
	}
	if cfg.ChatTransport == "" {
		cfg.ChatTransport = ChatOverRelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{cfg: cfg, ctx: ctx, cancel: cancel}
}

func (s *Session) SetCallbacks(cb Callbacks) {
	s.mu.Lock()
	s.callbacks = cb
	s.mu.Unlock()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) IsInitiator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isInitiator
}

func (s *Session) RemoteID() domain.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

// transition is the only place the phase changes.
func (s *Session) transition(to Phase, reason string) bool {
	s.mu.Lock()
	from := s.phase
	if !canTransition(from, to) {
		s.mu.Unlock()
		log.Debug().Str("module", "negotiation").Str("from", from.String()).Str("to", to.String()).Str("reason", reason).Msg("transition ignored")
		return false
	}
	s.phase = to
	if to == Disconnected && s.offerTimer != nil {
		s.offerTimer.Stop()
	}
	cb := s.callbacks.OnStateChange
	s.mu.Unlock()

	log.Info().Str("module", "negotiation").Str("from", from.String()).Str("to", to.String()).Str("reason", reason).Msg("phase")
	if cb != nil {
		cb(to)
	}
	return true
}

// AcquireLocalMedia opens the capture devices. Failures are *media.AccessError.
func (s *Session) AcquireLocalMedia(ctx context.Context, c media.Constraints) (*media.Stream, error) {
	s.mu.Lock()
	if s.ended || s.phase != Idle {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	if s.stream != nil {
		st := s.stream
		s.mu.Unlock()
		return st, nil
	}
	s.mu.Unlock()

	st, err := s.cfg.Devices.GetUserMedia(ctx, c)
	if err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("local media")
		return nil, err
	}

	s.mu.Lock()
	s.stream = st
	s.mu.Unlock()
	st.Start(s.ctx)
	return st, nil
}

// StartSession connects to the relay and joins roomID. onSignalingError
// receives relay error events and transport failures.
func (s *Session) StartSession(ctx context.Context, roomID, username string, onSignalingError func(error)) error {
	s.mu.Lock()
	switch {
	case s.ended || s.phase == Disconnected:
		s.mu.Unlock()
		return ErrSessionEnded
	case s.phase != Idle:
		s.mu.Unlock()
		return ErrAlreadyStarted
	case s.stream == nil:
		s.mu.Unlock()
		return ErrNoLocalMedia
	}
	stream := s.stream
	s.username = username
	s.onSigError = onSignalingError
	s.mu.Unlock()

	peer, err := s.cfg.NewPeer()
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	peer.OnICECandidate(s.onLocalCandidate)
	peer.OnConnectionStateChange(s.onPeerState)
	peer.OnTrack(s.onRemoteTrack)
	peer.OnDataChannel(s.attachDataChannel)

	for _, t := range stream.Tracks() {
		if err := peer.AddTrack(t.Track()); err != nil {
			_ = peer.Close()
			return fmt.Errorf("add %s track: %w", t.Kind(), err)
		}
	}

	var chat ChatTransport = RelayTransport{Signaler: s.cfg.Signaler}
	if s.cfg.ChatTransport == ChatOverDataChannel {
		chat = NewDataChannelTransport()
	}

	s.mu.Lock()
	s.peer = peer
	s.chat = chat
	s.mu.Unlock()

	s.transition(Connecting, "start")

	if err := s.cfg.Signaler.Connect(ctx, roomID, username, handler{s}); err != nil {
		s.reportSignalingError(err)
		s.transition(Disconnected, "relay unreachable")
		return err
	}
	log.Info().Str("module", "negotiation").Str("room", roomID).Str("username", username).Str("chat", chat.Name()).Msg("session started")
	return nil
}

// ToggleAudio flips the first audio track in place and returns its new state.
func (s *Session) ToggleAudio() bool { return s.toggle(media.KindAudio) }

func (s *Session) ToggleVideo() bool { return s.toggle(media.KindVideo) }

func (s *Session) toggle(kind media.Kind) bool {
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st == nil {
		return false
	}
	t := st.FirstTrack(kind)
	if t == nil {
		return false
	}
	enabled := t.Toggle()
	log.Info().Str("module", "negotiation").Str("kind", string(kind)).Bool("enabled", enabled).Msg("toggle")
	return enabled
}

func (s *Session) SendChatText(text string) error {
	s.mu.Lock()
	chat, username, ended := s.chat, s.username, s.ended
	onMessage := s.callbacks.OnMessage
	s.mu.Unlock()
	if ended {
		return ErrSessionEnded
	}
	if chat == nil {
		return ErrNotStarted
	}

	local, err := chat.Send(username, text)
	if err != nil {
		return err
	}
	if local != nil && onMessage != nil {
		onMessage(*local)
	}
	return nil
}

// EndSession releases everything the session owns. Every step runs even
// when an earlier one fails; the errors are joined. Idempotent.
func (s *Session) EndSession() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	if s.offerTimer != nil {
		s.offerTimer.Stop()
	}
	stream, dc, peer := s.stream, s.dc, s.peer
	s.mu.Unlock()

	s.transition(Disconnected, "end session")

	var errs []error
	step := func(name string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				errs = append(errs, fmt.Errorf("%s: panic: %v", name, r))
			}
		}()
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if stream != nil {
		step("stop tracks", stream.Stop)
	}
	if dc != nil {
		step("close data channel", dc.Close)
	}
	if peer != nil {
		step("close peer connection", peer.Close)
	}
	if s.cfg.Signaler != nil {
		step("disconnect signaling", s.cfg.Signaler.Close)
	}
	s.cancel()

	err := errors.Join(errs...)
	if err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("teardown finished with errors")
	} else {
		log.Info().Str("module", "negotiation").Msg("teardown complete")
	}
	return err
}

func (s *Session) reportSignalingError(err error) {
	s.mu.Lock()
	fn := s.onSigError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *Session) onPeerState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.transition(Connected, "peer connected")
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.transition(Disconnected, "peer "+state.String())
	default:
		log.Debug().Str("module", "negotiation").Str("state", state.String()).Msg("peer state")
	}
}

func (s *Session) onRemoteTrack(track *webrtc.TrackRemote) {
	rs := media.NewRemoteStream(track)
	s.deliverRemote(rs)
}

// deliverRemote hands rs to the application, or drains it when nobody listens.
func (s *Session) deliverRemote(rs *media.RemoteStream) {
	s.mu.Lock()
	cb := s.callbacks.OnRemoteStream
	ctx := s.ctx
	s.mu.Unlock()
	if cb != nil {
		cb(rs)
		return
	}
	go func() {
		if err := rs.Drain(ctx, nil); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Str("module", "negotiation").Msg("remote drain")
		}
	}()
}

func (s *Session) attachDataChannel(dc core.DataChannel) {
	if dc.Label() != DataChannelLabel {
		log.Warn().Str("module", "negotiation").Str("label", dc.Label()).Msg("unexpected data channel")
		return
	}
	s.mu.Lock()
	s.dc = dc
	chat := s.chat
	s.mu.Unlock()

	if t, ok := chat.(*DataChannelTransport); ok {
		t.Attach(dc)
	}
	dc.OnOpen(func() {
		log.Info().Str("module", "negotiation").Str("label", dc.Label()).Msg("data channel open")
	})
	dc.OnMessage(s.onDataMessage)
}

func (s *Session) onDataMessage(data []byte) {
	msg, err := DecodeChat(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("bad data channel message")
		return
	}
	s.deliverChat(msg)
}

func (s *Session) deliverChat(msg protocol.ChatMessage) {
	s.mu.Lock()
	cb := s.callbacks.OnMessage
	s.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

type peerAndTarget struct {
	peer   core.PeerConnection
	target domain.ParticipantID
}
