package core

import "errors"

// Frame is one encoded relay message.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts the relay's per-client messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking. ErrBackpressure when the queue is full.
	TrySend(Frame) error
	Close()
}
