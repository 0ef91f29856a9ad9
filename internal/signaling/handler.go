package signaling

import "github.com/dkeye/Duet/internal/protocol"

// Handler receives relay events. Calls arrive sequentially on the
// client's read goroutine; OnDisconnected after Close runs on the caller's.
type Handler interface {
	OnConnected()
	OnRoomJoined(protocol.RoomJoined)
	OnUserJoined(protocol.UserEvent)
	OnUserLeft(protocol.UserEvent)
	OnSignal(protocol.SignalForward)
	OnChat(protocol.ChatMessage)
	// OnError gets relay error events (*RelayError) and transport failures.
	OnError(error)
	// OnDisconnected fires once; err is nil after Close.
	OnDisconnected(err error)
}

// NopHandler can be embedded to implement only some callbacks.
type NopHandler struct{}

func (NopHandler) OnConnected() {}
func (NopHandler) OnRoomJoined(protocol.RoomJoined) {}
func (NopHandler) OnUserJoined(protocol.UserEvent) {}
func (NopHandler) OnUserLeft(protocol.UserEvent) {}
func (NopHandler) OnSignal(protocol.SignalForward) {}
func (NopHandler) OnChat(protocol.ChatMessage) {}
func (NopHandler) OnError(error) {}
func (NopHandler) OnDisconnected(error) {}
