package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []protocol.Envelope
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	env, err := protocol.Decode(f)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) take() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestHub() *Hub {
	h := NewHub(NewRegistry(), SimplePolicy{}, nil)
	h.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return h
}

func connect(h *Hub, id domain.ParticipantID) *fakeConn {
	c := &fakeConn{}
	h.handle(event{kind: evRegister, id: id, conn: c})
	return c
}

func send(t *testing.T, h *Hub, id domain.ParticipantID, typ string, payload any) {
	t.Helper()
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	h.handle(event{kind: evFrame, id: id, frame: frame})
}

func join(t *testing.T, h *Hub, id domain.ParticipantID, room, name string) {
	t.Helper()
	send(t, h, id, protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: room, Username: name})
}

func only(t *testing.T, c *fakeConn, typ string) protocol.Envelope {
	t.Helper()
	frames := c.take()
	if len(frames) != 1 {
		t.Fatalf("got %d frames %+v, want one %s", len(frames), frames, typ)
	}
	if frames[0].Type != typ {
		t.Fatalf("got %s (%s), want %s", frames[0].Type, frames[0].Payload, typ)
	}
	return frames[0]
}

func TestHubJoinPair(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")

	join(t, h, "a", "R1", "alice")
	var first protocol.RoomJoined
	_ = only(t, a, protocol.TypeRoomJoined).DecodePayload(&first)
	if first.IsInitiator || len(first.Users) != 1 || first.RoomID != "R1" {
		t.Fatalf("first room-joined=%+v", first)
	}

	join(t, h, "b", "R1", "bob")
	var second protocol.RoomJoined
	_ = only(t, b, protocol.TypeRoomJoined).DecodePayload(&second)
	if !second.IsInitiator || len(second.Users) != 2 {
		t.Fatalf("second room-joined=%+v", second)
	}
	if second.Users[0].SocketID != "a" || second.Users[1].SocketID != "b" {
		t.Fatalf("users=%+v, want join order", second.Users)
	}

	var joined protocol.UserEvent
	_ = only(t, a, protocol.TypeUserJoined).DecodePayload(&joined)
	if joined.SocketID != "b" || joined.Username != "bob" {
		t.Fatalf("user-joined=%+v", joined)
	}
}

func TestHubThirdJoinerGetsErrorOnly(t *testing.T) {
	h := newTestHub()
	a, b, c := connect(h, "a"), connect(h, "b"), connect(h, "c")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	a.take()
	b.take()

	join(t, h, "c", "R1", "carol")
	var e protocol.Error
	_ = only(t, c, protocol.TypeError).DecodePayload(&e)
	if e.Message != msgRoomFull {
		t.Fatalf("error=%q", e.Message)
	}
	if len(a.take()) != 0 || len(b.take()) != 0 {
		t.Fatalf("members must not hear about a rejected join")
	}
	if n := len(h.Registry.Members("R1")); n != 2 {
		t.Fatalf("members=%d, want 2", n)
	}
}

func TestHubJoinValidation(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")

	cases := []struct {
		room, name, want string
	}{
		{"   ", "alice", msgRoomRequired},
		{strings.Repeat("r", domain.MaxRoomIDLen+1), "alice", msgRoomTooLong},
		{"R1", "  ", msgNameRequired},
		{"R1", strings.Repeat("n", domain.MaxUsernameLen+1), msgNameTooLong},
	}
	for _, tc := range cases {
		join(t, h, "a", tc.room, tc.name)
		var e protocol.Error
		_ = only(t, a, protocol.TypeError).DecodePayload(&e)
		if e.Message != tc.want {
			t.Fatalf("join(%q,%q) error=%q, want %q", tc.room, tc.name, e.Message, tc.want)
		}
	}
	if h.Registry.RoomCount() != 0 {
		t.Fatalf("invalid joins created rooms")
	}
}

func TestHubJoinTrimsInput(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	join(t, h, "a", "  R1 ", " alice ")
	var rj protocol.RoomJoined
	_ = only(t, a, protocol.TypeRoomJoined).DecodePayload(&rj)
	if rj.RoomID != "R1" || rj.Users[0].Username != "alice" {
		t.Fatalf("room-joined=%+v", rj)
	}
}

func TestHubRejoinLeavesPreviousRoom(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	a.take()
	b.take()

	join(t, h, "a", "R2", "alice")
	only(t, a, protocol.TypeRoomJoined)
	var left protocol.UserEvent
	_ = only(t, b, protocol.TypeUserLeft).DecodePayload(&left)
	if left.SocketID != "a" {
		t.Fatalf("user-left=%+v", left)
	}
	if n := len(h.Registry.Members("R1")); n != 1 {
		t.Fatalf("R1 members=%d, want 1", n)
	}
}

func TestHubRejoinIntoFullRoomKeepsCurrentRoom(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	c, d := connect(h, "c"), connect(h, "d")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	join(t, h, "c", "R2", "carol")
	join(t, h, "d", "R2", "dave")
	for _, conn := range []*fakeConn{a, b, c, d} {
		conn.take()
	}

	join(t, h, "a", "R2", "alice")
	var e protocol.Error
	_ = only(t, a, protocol.TypeError).DecodePayload(&e)
	if e.Message != msgRoomFull {
		t.Fatalf("error=%q", e.Message)
	}
	for name, conn := range map[string]*fakeConn{"b": b, "c": c, "d": d} {
		if frames := conn.take(); len(frames) != 0 {
			t.Fatalf("%s heard about a rejected join: %+v", name, frames)
		}
	}
	if n := len(h.Registry.Members("R1")); n != 2 {
		t.Fatalf("R1 members=%d, want 2", n)
	}
	if n := len(h.Registry.Members("R2")); n != 2 {
		t.Fatalf("R2 members=%d, want 2", n)
	}
	if p, ok := h.Registry.Get("a"); !ok || p.RoomID != "R1" {
		t.Fatalf("a=%+v ok=%v, want still in R1", p, ok)
	}
}

func TestHubRejoinSameFullRoom(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	a.take()
	b.take()

	join(t, h, "a", "R1", "alice")
	only(t, a, protocol.TypeRoomJoined)
	frames := b.take()
	if len(frames) != 2 || frames[0].Type != protocol.TypeUserLeft || frames[1].Type != protocol.TypeUserJoined {
		t.Fatalf("b frames=%+v", frames)
	}
	if n := len(h.Registry.Members("R1")); n != 2 {
		t.Fatalf("R1 members=%d, want 2", n)
	}
}

func TestHubSignalRouting(t *testing.T) {
	h := newTestHub()
	a, b, c := connect(h, "a"), connect(h, "b"), connect(h, "c")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	join(t, h, "c", "R2", "carol")
	a.take()
	b.take()
	c.take()

	sig := json.RawMessage(`{"type":"offer","sdp":{"type":"offer","sdp":"v=0"}}`)

	send(t, h, "b", protocol.TypeSignal, protocol.SignalRequest{RoomID: "R1", TargetSocketID: "a", Signal: sig})
	var fwd protocol.SignalForward
	_ = only(t, a, protocol.TypeSignal).DecodePayload(&fwd)
	if fwd.FromSocketID != "b" || fwd.FromUsername != "bob" || string(fwd.Signal) != string(sig) {
		t.Fatalf("forward=%+v", fwd)
	}
	if len(b.take()) != 0 {
		t.Fatalf("sender must not receive its own signal")
	}

	// Untargeted goes to every other member.
	send(t, h, "a", protocol.TypeSignal, protocol.SignalRequest{RoomID: "R1", Signal: sig})
	only(t, b, protocol.TypeSignal)
	if len(a.take()) != 0 {
		t.Fatalf("untargeted signal echoed to sender")
	}

	// Target outside the sender's room is dropped.
	send(t, h, "a", protocol.TypeSignal, protocol.SignalRequest{TargetSocketID: "c", Signal: sig})
	if len(c.take()) != 0 {
		t.Fatalf("signal crossed rooms")
	}

	// Unknown sender is ignored.
	d := connect(h, "d")
	send(t, h, "d", protocol.TypeSignal, protocol.SignalRequest{TargetSocketID: "a", Signal: sig})
	if len(a.take()) != 0 || len(d.take()) != 0 {
		t.Fatalf("signal from a connection outside any room was relayed")
	}
}

func TestHubChat(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	a.take()
	b.take()

	send(t, h, "a", protocol.TypeChat, protocol.ChatRequest{RoomID: "R1", Message: "hi"})
	var got []protocol.ChatMessage
	for _, c := range []*fakeConn{a, b} {
		var msg protocol.ChatMessage
		_ = only(t, c, protocol.TypeChat).DecodePayload(&msg)
		if msg.Text != "hi" || msg.Username != "alice" || msg.ID == "" {
			t.Fatalf("chat=%+v", msg)
		}
		if !msg.Timestamp.Equal(h.now()) {
			t.Fatalf("timestamp=%v", msg.Timestamp)
		}
		got = append(got, msg)
	}
	if got[0].ID != got[1].ID || got[0].Text != got[1].Text || got[0].Username != got[1].Username {
		t.Fatalf("sender and peer saw different messages: %+v vs %+v", got[0], got[1])
	}

	send(t, h, "a", protocol.TypeChat, protocol.ChatRequest{Message: "   "})
	if len(a.take()) != 0 || len(b.take()) != 0 {
		t.Fatalf("blank chat must be dropped")
	}

	send(t, h, "a", protocol.TypeChat, protocol.ChatRequest{Message: strings.Repeat("x", domain.MaxChatTextLen+1)})
	only(t, a, protocol.TypeError)
	if len(b.take()) != 0 {
		t.Fatalf("oversized chat was relayed")
	}
}

func TestHubDisconnectNotifiesRemaining(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	a.take()
	b.take()

	h.handle(event{kind: evUnregister, id: "b"})
	var left protocol.UserEvent
	_ = only(t, a, protocol.TypeUserLeft).DecodePayload(&left)
	if left.SocketID != "b" || left.Username != "bob" {
		t.Fatalf("user-left=%+v", left)
	}

	h.handle(event{kind: evUnregister, id: "a"})
	if h.Registry.RoomCount() != 0 || h.Registry.ParticipantCount() != 0 {
		t.Fatalf("registry not empty after both left")
	}
}

func TestHubLeaveRoomKeepsConnection(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	a.take()
	b.take()

	send(t, h, "a", protocol.TypeLeaveRoom, nil)
	only(t, b, protocol.TypeUserLeft)

	// Still registered: can join again.
	join(t, h, "a", "R3", "alice")
	only(t, a, protocol.TypeRoomJoined)
}

func TestHubLeaveNotifiesOnce(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	join(t, h, "b", "R1", "bob")
	a.take()
	b.take()

	send(t, h, "a", protocol.TypeLeaveRoom, nil)
	send(t, h, "a", protocol.TypeLeaveRoom, nil)
	h.handle(event{kind: evUnregister, id: "a"})

	left := 0
	for _, f := range b.take() {
		if f.Type == protocol.TypeUserLeft {
			left++
		}
	}
	if left != 1 {
		t.Fatalf("user-left count=%d, want 1", left)
	}
	if len(a.take()) != 0 {
		t.Fatalf("leaving connection received frames")
	}
	if h.Registry.RoomCount() != 1 || h.Registry.ParticipantCount() != 1 {
		t.Fatalf("rooms=%d participants=%d, want 1/1", h.Registry.RoomCount(), h.Registry.ParticipantCount())
	}
}

func TestHubIgnoresUnknownAndMalformed(t *testing.T) {
	h := newTestHub()
	a := connect(h, "a")
	h.handle(event{kind: evFrame, id: "a", frame: core.Frame(`not json`)})
	send(t, h, "a", "dance", nil)
	if len(a.take()) != 0 {
		t.Fatalf("unexpected reply")
	}
}

func TestHubBackpressureKicksSlowMember(t *testing.T) {
	h := newTestHub()
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	a.full = true

	join(t, h, "b", "R1", "bob")
	if !a.isClosed() {
		t.Fatalf("slow connection must be closed by SimplePolicy")
	}
	only(t, b, protocol.TypeRoomJoined)
}

func TestHubLenientPolicyDropsFrame(t *testing.T) {
	h := NewHub(NewRegistry(), LenientPolicy{}, nil)
	a, b := connect(h, "a"), connect(h, "b")
	join(t, h, "a", "R1", "alice")
	a.take()
	a.full = true

	join(t, h, "b", "R1", "bob")
	if a.isClosed() {
		t.Fatalf("LenientPolicy must keep the slow connection")
	}
	only(t, b, protocol.TypeRoomJoined)
	if n := len(h.Registry.Members("R1")); n != 2 {
		t.Fatalf("R1 members=%d, want 2", n)
	}
}

func TestHubJoinRateLimit(t *testing.T) {
	h := NewHub(NewRegistry(), nil, NewRateLimiter(2, time.Minute))
	a := connect(h, "a")
	join(t, h, "a", "R1", "alice")
	join(t, h, "a", "R2", "alice")
	a.take()

	join(t, h, "a", "R3", "alice")
	var e protocol.Error
	_ = only(t, a, protocol.TypeError).DecodePayload(&e)
	if e.Message != msgRateLimited {
		t.Fatalf("error=%q", e.Message)
	}
}

func TestHubRunProcessesQueuedEvents(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()

	a := &fakeConn{}
	if err := h.Register("a", a); err != nil {
		t.Fatalf("register: %v", err)
	}
	frame, _ := protocol.Encode(protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: "R1", Username: "alice"})
	if err := h.Dispatch("a", frame); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Registry.ParticipantCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("join not processed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !a.isClosed() {
		t.Fatalf("connections must be closed on shutdown")
	}
	if err := h.Unregister("a"); err != ErrHubStopped {
		t.Fatalf("unregister after stop err=%v", err)
	}
}
