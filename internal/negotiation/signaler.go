package negotiation

import (
	"context"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/dkeye/Duet/internal/signaling"
)

// Signaler is the relay connection as the session sees it.
// *signaling.Client implements it.
type Signaler interface {
	Connect(ctx context.Context, roomID, username string, h signaling.Handler) error
	SendSignal(target domain.ParticipantID, sig protocol.Signal) error
	SendChat(text string) error
	Close() error
}

var _ Signaler = (*signaling.Client)(nil)
