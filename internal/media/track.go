package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

var ErrTrackStopped = errors.New("track stopped")

// Source produces encoded samples from a capture device.
type Source interface {
	ReadSample(ctx context.Context) (pionmedia.Sample, error)
	Close() error
}

// LocalTrack is one captured track. Disabling it keeps the track
// negotiated and the device open; samples are simply not sent.
type LocalTrack struct {
	kind  Kind
	track *webrtc.TrackLocalStaticSample
	src   Source

	enabled atomic.Bool
	stopped atomic.Bool

	mu       sync.Mutex
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewLocalTrack(kind Kind, streamID string, src Source) (*LocalTrack, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == KindVideo {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	tr, err := webrtc.NewTrackLocalStaticSample(codec, string(kind)+"-"+uuid.NewString(), streamID)
	if err != nil {
		return nil, err
	}
	t := &LocalTrack{kind: kind, track: tr, src: src, done: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *LocalTrack) Kind() Kind { return t.kind }
func (t *LocalTrack) ID() string { return t.track.ID() }
func (t *LocalTrack) Track() webrtc.TrackLocal { return t.track }
func (t *LocalTrack) Enabled() bool { return t.enabled.Load() }
func (t *LocalTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }
func (t *LocalTrack) Stopped() bool { return t.stopped.Load() }

// Toggle flips the enabled flag and returns the new value.
func (t *LocalTrack) Toggle() bool {
	for {
		cur := t.enabled.Load()
		if t.enabled.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

// WriteSample forwards s unless the track is disabled or stopped.
func (t *LocalTrack) WriteSample(s pionmedia.Sample) error {
	if t.stopped.Load() {
		return ErrTrackStopped
	}
	if !t.enabled.Load() {
		return nil
	}
	return t.track.WriteSample(s)
}

// Start pumps samples from the source until ctx ends or Stop is called.
func (t *LocalTrack) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.src == nil || t.cancel != nil || t.stopped.Load() {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go func() {
		defer close(t.done)
		for {
			s, err := t.src.ReadSample(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("module", "media").Str("kind", string(t.kind)).Msg("source read")
				}
				return
			}
			if err := t.WriteSample(s); err != nil {
				return
			}
		}
	}()
}

// Stop releases the device. Idempotent.
func (t *LocalTrack) Stop() error {
	var err error
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		t.mu.Lock()
		cancel := t.cancel
		t.mu.Unlock()
		if cancel != nil {
			cancel()
			<-t.done
		}
		if t.src != nil {
			err = t.src.Close()
		}
		log.Debug().Str("module", "media").Str("kind", string(t.kind)).Str("track_id", t.ID()).Msg("track stopped")
	})
	return err
}
