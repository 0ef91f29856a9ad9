package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// opusSilence is a single 20ms Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SyntheticDevices stands in for real capture hardware: silent audio and a
// blank video pattern. The flags simulate the usual failures.
type SyntheticDevices struct {
	Deny         bool
	Busy         bool
	NoCamera     bool
	NoMicrophone bool
}

func (d SyntheticDevices) GetUserMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio && !c.Video {
		return nil, ErrNoTracksRequested
	}
	switch {
	case d.Deny:
		return nil, &AccessError{Kind: PermissionDenied}
	case d.Busy:
		return nil, &AccessError{Kind: DeviceBusy}
	case c.Audio && d.NoMicrophone, c.Video && d.NoCamera:
		return nil, &AccessError{Kind: DeviceNotFound}
	}

	streamID := uuid.NewString()
	var tracks []*LocalTrack
	if c.Audio {
		t, err := NewLocalTrack(KindAudio, streamID, newTicker(20*time.Millisecond, func() []byte { return opusSilence }))
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	if c.Video {
		frame := make([]byte, 64)
		t, err := NewLocalTrack(KindVideo, streamID, newTicker(time.Second/30, func() []byte { return frame }))
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	log.Info().Str("module", "media").Str("stream_id", streamID).Int("tracks", len(tracks)).Msg("synthetic stream opened")
	return NewStream(streamID, tracks...), nil
}

type tickerSource struct {
	every time.Duration
	next  func() []byte
	t     *time.Ticker
}

func newTicker(every time.Duration, next func() []byte) *tickerSource {
	return &tickerSource{every: every, next: next, t: time.NewTicker(every)}
}

func (s *tickerSource) ReadSample(ctx context.Context) (pionmedia.Sample, error) {
	select {
	case <-ctx.Done():
		return pionmedia.Sample{}, ctx.Err()
	case <-s.t.C:
		return pionmedia.Sample{Data: s.next(), Duration: s.every}, nil
	}
}

func (s *tickerSource) Close() error {
	s.t.Stop()
	return nil
}
