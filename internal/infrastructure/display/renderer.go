// Package display binds media sources to the playback surface. For remote
// streams it drains inbound RTP and keeps the picture fresh with periodic
// keyframe requests.
package display

import (
	"context"
	"sync"
	"time"

	"webcaster/internal/core/ports"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const defaultKeyframeInterval = 3 * time.Second

// Renderer is the playback surface binding. At most one source is bound; a
// rebind of the same source identity is a no-op.
type Renderer struct {
	keyframeInterval time.Duration
	logger           *zap.SugaredLogger

	mu        sync.Mutex
	currentID string
	cancel    context.CancelFunc
}

func NewRenderer(keyframeInterval time.Duration, logger *zap.Logger) *Renderer {
	if keyframeInterval <= 0 {
		keyframeInterval = defaultKeyframeInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		keyframeInterval: keyframeInterval,
		logger:           logger.Sugar(),
	}
}

// Bind replaces the current binding only when src differs by identity. Remote
// streams start playback immediately; local sources are just held as bound.
func (r *Renderer) Bind(src ports.MediaSource) {
	r.mu.Lock()
	if r.currentID == src.ID() {
		r.mu.Unlock()
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.currentID = src.ID()

	if stream, ok := src.(ports.InboundStream); ok {
		ctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		go r.play(ctx, stream)
	}
	r.mu.Unlock()

	r.logger.Infow("display bound", "source_id", src.ID())
}

// BoundSource returns the identity of the currently bound source, if any.
func (r *Renderer) BoundSource() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentID
}

// Close stops playback and clears the binding.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.currentID = ""
}

// play drains every track of the stream and requests keyframes on a ticker.
// Tracks can trickle in after the stream first fires, so each tick also
// picks up drains for tracks not seen before.
func (r *Renderer) play(ctx context.Context, stream ports.InboundStream) {
	if err := stream.RequestKeyFrame(); err != nil {
		r.logger.Debugw("initial keyframe request failed", "stream_id", stream.ID(), "error", err)
	}

	draining := make(map[string]bool)
	startNew := func() {
		for _, track := range stream.Tracks() {
			if !draining[track.ID()] {
				draining[track.ID()] = true
				go r.drainTrack(ctx, stream.ID(), track)
			}
		}
	}
	startNew()

	ticker := time.NewTicker(r.keyframeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			startNew()
			if err := stream.RequestKeyFrame(); err != nil {
				r.logger.Debugw("keyframe request failed", "stream_id", stream.ID(), "error", err)
				return
			}
		}
	}
}

func (r *Renderer) drainTrack(ctx context.Context, streamID string, track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}
	var packets uint64

	for ctx.Err() == nil {
		n, _, err := track.Read(buf)
		if err != nil {
			r.logger.Debugw("track read ended",
				"stream_id", streamID,
				"track_id", track.ID(),
				"packets", packets,
				"error", err,
			)
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			r.logger.Warnw("dropping malformed rtp packet",
				"stream_id", streamID,
				"track_id", track.ID(),
				"error", err,
			)
			continue
		}

		packets++
		if packets%1000 == 0 {
			r.logger.Debugw("playback progressing",
				"stream_id", streamID,
				"track_id", track.ID(),
				"packets", packets,
				"sequence", pkt.SequenceNumber,
			)
		}
	}
}
