package media

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RemoteTrack is the read side of a track received from the peer.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RemoteStream is handed to the application when the peer's media arrives.
type RemoteStream struct {
	Track RemoteTrack

	packets atomic.Uint64
	bytes   atomic.Uint64
}

func NewRemoteStream(t RemoteTrack) *RemoteStream {
	return &RemoteStream{Track: t}
}

func (r *RemoteStream) Kind() Kind {
	if r.Track.Kind() == webrtc.RTPCodecTypeVideo {
		return KindVideo
	}
	return KindAudio
}

func (r *RemoteStream) Packets() uint64 { return r.packets.Load() }
func (r *RemoteStream) Bytes() uint64 { return r.bytes.Load() }

// Drain reads packets until the track ends or ctx is done, passing each
// to onPacket when it is non-nil.
func (r *RemoteStream) Drain(ctx context.Context, onPacket func(*rtp.Packet)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, _, err := r.Track.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Str("module", "media").Str("track_id", r.Track.ID()).Uint64("packets", r.Packets()).Msg("remote track ended")
				return nil
			}
			return err
		}
		r.packets.Add(1)
		r.bytes.Add(uint64(len(pkt.Payload)))
		if onPacket != nil {
			onPacket(pkt)
		}
	}
}
