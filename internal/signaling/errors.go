package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("signaling: not connected")
	ErrRelay        = errors.New("signaling server error")
)

// RelayError is an error event sent by the relay, e.g. a full room.
type RelayError struct {
	Message string
}

func (e *RelayError) Error() string { return fmt.Sprintf("%v: %s", ErrRelay, e.Message) }

func (e *RelayError) Unwrap() error { return ErrRelay }
