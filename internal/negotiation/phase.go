package negotiation

// Phase is the session lifecycle as shown to the application.
type Phase int

const (
	Idle Phase = iota
	Connecting
	Connected
	Disconnected
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// canTransition lists the only legal moves. Disconnected is terminal.
func canTransition(from, to Phase) bool {
	switch from {
	case Idle:
		return to == Connecting || to == Disconnected
	case Connecting:
		return to == Connected || to == Disconnected
	case Connected:
		return to == Disconnected
	default:
		return false
	}
}
