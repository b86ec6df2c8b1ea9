// Package capture acquires local media as RTP tracks the peer transport can
// send. The tracks are fed by whatever pipeline produces the actual frames.
package capture

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"webcaster/internal/core/domain"
	"webcaster/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Engine builds local sources according to the configured codec preferences.
type Engine struct {
	videoMime string
	audioMime string
	logger    *zap.SugaredLogger
}

// NewEngine maps codec names to mime types, defaulting to H264/Opus.
func NewEngine(videoCodec, audioCodec string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		videoMime: videoMimeType(videoCodec),
		audioMime: audioMimeType(audioCodec),
		logger:    logger.Sugar(),
	}
}

// Acquire creates the local tracks the constraints ask for. Requesting no
// media at all is the capture-side permission failure of this adapter.
func (e *Engine) Acquire(_ context.Context, constraints domain.MediaConstraints) (ports.LocalSource, error) {
	if !constraints.Audio && !constraints.Video {
		return nil, domain.ErrNoMediaRequested
	}

	src := &Source{id: uuid.NewString()}

	if constraints.Audio {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: e.audioMime},
			"audio",
			src.id,
		)
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		src.audio = track
	}

	if constraints.Video {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: e.videoMime},
			"video",
			src.id,
		)
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
		src.video = track
	}

	e.logger.Debugw("local source acquired",
		"source_id", src.id,
		"audio", constraints.Audio,
		"video", constraints.Video,
	)
	return src, nil
}

func videoMimeType(codec string) string {
	switch strings.ToLower(codec) {
	case "vp8":
		return webrtc.MimeTypeVP8
	case "vp9":
		return webrtc.MimeTypeVP9
	default:
		return webrtc.MimeTypeH264
	}
}

func audioMimeType(codec string) string {
	switch strings.ToLower(codec) {
	case "pcmu":
		return webrtc.MimeTypePCMU
	case "pcma":
		return webrtc.MimeTypePCMA
	default:
		return webrtc.MimeTypeOpus
	}
}

// Source is one acquired set of local tracks. Stopped sources refuse writes
// so a stale feeder cannot push into a superseded preview.
type Source struct {
	id      string
	audio   *webrtc.TrackLocalStaticRTP
	video   *webrtc.TrackLocalStaticRTP
	stopped atomic.Bool
}

func (s *Source) ID() string {
	return s.id
}

func (s *Source) Tracks() []webrtc.TrackLocal {
	var tracks []webrtc.TrackLocal
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

// WriteAudioRTP feeds one audio packet into the source.
func (s *Source) WriteAudioRTP(pkt *rtp.Packet) error {
	return s.write(s.audio, pkt)
}

// WriteVideoRTP feeds one video packet into the source.
func (s *Source) WriteVideoRTP(pkt *rtp.Packet) error {
	return s.write(s.video, pkt)
}

func (s *Source) write(track *webrtc.TrackLocalStaticRTP, pkt *rtp.Packet) error {
	if s.stopped.Load() {
		return fmt.Errorf("source %s is stopped", s.id)
	}
	if track == nil {
		return fmt.Errorf("source %s has no such track", s.id)
	}
	return track.WriteRTP(pkt)
}

func (s *Source) Stop() {
	s.stopped.Store(true)
}
