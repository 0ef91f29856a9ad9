package protocol

import (
	"encoding/json"
	"fmt"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "ice-candidate"
)

// SessionDescription mirrors RTCSessionDescriptionInit.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate mirrors RTCIceCandidateInit.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Signal is the negotiation payload the relay forwards without interpreting.
type Signal struct {
	Type      SignalKind          `json:"type"`
	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate *ICECandidate       `json:"candidate,omitempty"`
}

func (s Signal) Validate() error {
	switch s.Type {
	case SignalOffer, SignalAnswer:
		if s.SDP == nil || s.SDP.SDP == "" {
			return fmt.Errorf("%s signal missing sdp", s.Type)
		}
		if s.SDP.Type != string(s.Type) {
			return fmt.Errorf("%s signal has sdp.type=%q", s.Type, s.SDP.Type)
		}
	case SignalCandidate:
		if s.Candidate == nil {
			return fmt.Errorf("ice-candidate signal missing candidate")
		}
	default:
		return fmt.Errorf("unsupported signal type %q", s.Type)
	}
	return nil
}

func ParseSignal(raw json.RawMessage) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(raw, &s); err != nil {
		return Signal{}, err
	}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

// SignalKindOf peeks at the type field for logging; it never fails.
func SignalKindOf(raw json.RawMessage) SignalKind {
	var s struct {
		Type SignalKind `json:"type"`
	}
	_ = json.Unmarshal(raw, &s)
	return s.Type
}
