package negotiation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Duet/internal/core"
	"github.com/pion/webrtc/v4"
)

type fakeDataChannel struct {
	mu       sync.Mutex
	label    string
	sent     [][]byte
	onMsg    func([]byte)
	closeErr error
	closed   bool
}

func (d *fakeDataChannel) Label() string { return d.label }

func (d *fakeDataChannel) Send(b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, b)
	return nil
}

func (d *fakeDataChannel) OnOpen(func()) {}

func (d *fakeDataChannel) OnMessage(fn func([]byte)) {
	d.mu.Lock()
	d.onMsg = fn
	d.mu.Unlock()
}

func (d *fakeDataChannel) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.closeErr
}

func (d *fakeDataChannel) deliver(b []byte) {
	d.mu.Lock()
	fn := d.onMsg
	d.mu.Unlock()
	fn(b)
}

// fakePeer records every call the session makes on it.
type fakePeer struct {
	mu         sync.Mutex
	ops        []string
	candidates []string
	channel    *fakeDataChannel
	remoteErr  error
	closeErr   error
	closed     bool

	onICE     func(webrtc.ICECandidateInit)
	onState   func(webrtc.PeerConnectionState)
	onTrack   func(*webrtc.TrackRemote)
	onChannel func(core.DataChannel)
}

var _ core.PeerConnection = (*fakePeer)(nil)

func (p *fakePeer) record(op string) {
	p.mu.Lock()
	p.ops = append(p.ops, op)
	p.mu.Unlock()
}

func (p *fakePeer) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

func (p *fakePeer) Candidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.candidates...)
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.record("CreateOffer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.record("CreateAnswer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (p *fakePeer) SetLocalDescription(d webrtc.SessionDescription) error {
	p.record("SetLocal:" + d.Type.String())
	return nil
}

func (p *fakePeer) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.record("SetRemote:" + d.Type.String())
	return p.remoteErr
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, c.Candidate)
	return nil
}

func (p *fakePeer) AddTrack(t webrtc.TrackLocal) error {
	p.record("AddTrack:" + t.Kind().String())
	return nil
}

func (p *fakePeer) CreateDataChannel(label string) (core.DataChannel, error) {
	p.record("CreateDataChannel:" + label)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = &fakeDataChannel{label: label}
	return p.channel, nil
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }
func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { p.onState = fn }
func (p *fakePeer) OnTrack(fn func(*webrtc.TrackRemote)) { p.onTrack = fn }
func (p *fakePeer) OnDataChannel(fn func(core.DataChannel)) { p.onChannel = fn }

func (p *fakePeer) Close() error {
	p.record("Close")
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.closeErr
}

func (p *fakePeer) dataChannel() *fakeDataChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

var errBoom = errors.New("boom")

func candidate(i int) string { return fmt.Sprintf("candidate:%d 1 udp 1 10.0.0.%d 5000 typ host", i, i) }
