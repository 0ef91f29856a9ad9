package negotiation

import (
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

func toPionDescription(d *protocol.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}

func fromPionDescription(d webrtc.SessionDescription) *protocol.SessionDescription {
	return &protocol.SessionDescription{Type: d.Type.String(), SDP: d.SDP}
}

func toPionCandidate(c *protocol.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromPionCandidate(c webrtc.ICECandidateInit) *protocol.ICECandidate {
	return &protocol.ICECandidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
