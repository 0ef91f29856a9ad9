package media

import (
	"context"
	"errors"
)

type Constraints struct {
	Audio bool
	Video bool
}

var ErrNoTracksRequested = errors.New("at least one of audio or video must be requested")

// Devices opens capture devices, the equivalent of getUserMedia.
type Devices interface {
	GetUserMedia(ctx context.Context, c Constraints) (*Stream, error)
}

// Stream is the local media stream: an ordered set of tracks.
type Stream struct {
	ID     string
	tracks []*LocalTrack
}

func NewStream(id string, tracks ...*LocalTrack) *Stream {
	return &Stream{ID: id, tracks: tracks}
}

func (s *Stream) Tracks() []*LocalTrack {
	out := make([]*LocalTrack, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// FirstTrack returns the first track of kind, or nil.
func (s *Stream) FirstTrack(kind Kind) *LocalTrack {
	for _, t := range s.tracks {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}

func (s *Stream) Start(ctx context.Context) {
	for _, t := range s.tracks {
		t.Start(ctx)
	}
}

// Stop stops every track, joining their errors.
func (s *Stream) Stop() error {
	var errs []error
	for _, t := range s.tracks {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
