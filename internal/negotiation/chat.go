package negotiation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ChatOverRelay       = "relay"
	ChatOverDataChannel = "datachannel"
)

var ErrChannelNotOpen = errors.New("data channel not open")

// ChatTransport delivers chat text to the peer.
type ChatTransport interface {
	Name() string
	// Send returns the message for local display when the transport does
	// not echo it back to the sender, nil otherwise.
	Send(username, text string) (*protocol.ChatMessage, error)
}

// RelayTransport broadcasts through the relay, which echoes to the sender.
type RelayTransport struct {
	Signaler Signaler
}

func (RelayTransport) Name() string { return ChatOverRelay }

func (t RelayTransport) Send(_, text string) (*protocol.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrChatEmpty
	}
	if len(text) > domain.MaxChatTextLen {
		return nil, domain.ErrChatTooLong
	}
	return nil, t.Signaler.SendChat(text)
}

// DataChannelTransport sends msgpack-encoded messages straight to the peer.
type DataChannelTransport struct {
	mu  sync.RWMutex
	ch  core.DataChannel
	now func() time.Time
}

func NewDataChannelTransport() *DataChannelTransport {
	return &DataChannelTransport{now: time.Now}
}

func (*DataChannelTransport) Name() string { return ChatOverDataChannel }

func (t *DataChannelTransport) Attach(ch core.DataChannel) {
	t.mu.Lock()
	t.ch = ch
	t.mu.Unlock()
}

func (t *DataChannelTransport) Send(username, text string) (*protocol.ChatMessage, error) {
	t.mu.RLock()
	ch := t.ch
	t.mu.RUnlock()
	if ch == nil {
		return nil, ErrChannelNotOpen
	}
	msg, err := domain.NewChatMessage(username, text, t.now())
	if err != nil {
		return nil, err
	}
	data, err := EncodeChat(msg)
	if err != nil {
		return nil, err
	}
	if err := ch.Send(data); err != nil {
		return nil, err
	}
	return &msg, nil
}

func EncodeChat(msg protocol.ChatMessage) ([]byte, error) {
	return msgpack.Marshal(&msg)
}

func DecodeChat(data []byte) (protocol.ChatMessage, error) {
	var msg protocol.ChatMessage
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}
