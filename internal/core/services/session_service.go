package services

import (
	"context"
	"sync"
	"time"

	"webcaster/internal/core/domain"
	"webcaster/internal/core/ports"
	apperrors "webcaster/pkg/errors"
	sdpkit "webcaster/pkg/sdp"
	"webcaster/pkg/tracing"

	"go.uber.org/zap"
)

// SessionService negotiates play and publish sessions against a streaming
// server. It owns at most one live peer transport and one local media source;
// both slots are written only by its own methods. A signaling channel is
// scoped strictly to the negotiation call that opened it and is disconnected
// on every exit path. Calls are expected to be serialized by the caller.
type SessionService struct {
	capture    ports.Capture
	transports ports.TransportFactory
	signals    ports.SignalDialer
	display    ports.Display
	metrics    ports.Metrics
	logger     *zap.SugaredLogger

	mu          sync.Mutex
	opts        domain.SessionOptions
	transport   ports.PeerTransport
	localSource ports.LocalSource
}

// NewSessionService creates a session orchestrator bound to one display
// surface. metrics may be nil.
func NewSessionService(
	capture ports.Capture,
	transports ports.TransportFactory,
	signals ports.SignalDialer,
	display ports.Display,
	metrics ports.Metrics,
	defaults domain.SessionOptions,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		capture:    capture,
		transports: transports,
		signals:    signals,
		display:    display,
		metrics:    metrics,
		opts:       defaults,
		logger:     logger.Sugar(),
	}
}

// ApplyOptions overlays the present fields of overlay onto the held session
// options. Absent fields never erase configured values.
func (s *SessionService) ApplyOptions(overlay *domain.OptionsOverlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Apply(overlay)
}

// Options returns a copy of the currently held session options.
func (s *SessionService) Options() domain.SessionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// StartLocalPreview acquires a local media source and binds it to the display
// surface. The source becomes the orchestrator-owned local source.
func (s *SessionService) StartLocalPreview(ctx context.Context, constraints *domain.MediaConstraints) (ports.LocalSource, error) {
	if constraints != nil {
		s.ApplyOptions(&domain.OptionsOverlay{Constraints: constraints})
	}

	s.mu.Lock()
	cons := s.opts.Constraints
	s.mu.Unlock()
	if cons == (domain.MediaConstraints{}) {
		cons = domain.DefaultConstraints()
	}

	src, err := s.capture.Acquire(ctx, cons)
	if err != nil {
		return nil, apperrors.NewAcquisitionError("acquire local media", err)
	}

	s.display.Bind(src)

	s.mu.Lock()
	s.localSource = src
	s.mu.Unlock()

	s.logger.Infow("local preview started", "source_id", src.ID(), "audio", cons.Audio, "video", cons.Video)
	return src, nil
}

// StopLocalPreview closes any active peer transport, then halts and releases
// the owned local source. Safe to call repeatedly.
func (s *SessionService) StopLocalPreview() {
	s.StopPeerSession()

	s.mu.Lock()
	src := s.localSource
	s.localSource = nil
	s.mu.Unlock()

	if src != nil {
		src.Stop()
		s.logger.Infow("local preview stopped", "source_id", src.ID())
	}
}

// StopPeerSession closes the owned peer transport, if any. Safe to call
// repeatedly.
func (s *SessionService) StopPeerSession() {
	s.mu.Lock()
	pt := s.transport
	s.transport = nil
	s.mu.Unlock()

	if pt == nil {
		return
	}
	if err := pt.Close(); err != nil {
		s.logger.Warnw("peer transport close failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.TransportClosed()
	}
}

// ActiveTransport returns the native handle of the owned peer transport, or
// nil when none exists.
func (s *SessionService) ActiveTransport() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return nil
	}
	return s.transport.NativeHandle()
}

// PlayRemote negotiates playback of the configured stream: fetch the remote
// offer, rewrite it for decoder compatibility, answer it, and attach the
// returned candidates. The signaling channel never outlives the call.
func (s *SessionService) PlayRemote(ctx context.Context, overlay *domain.OptionsOverlay) error {
	return s.negotiate(ctx, "play", overlay, s.playRemote)
}

// Publish negotiates publishing of the local media source: build a local
// offer, run it through the caller's transform hook or the default
// enhancement, and complete the exchange with the server's answer.
func (s *SessionService) Publish(ctx context.Context, overlay *domain.OptionsOverlay) error {
	return s.negotiate(ctx, "publish", overlay, s.publish)
}

func (s *SessionService) negotiate(
	ctx context.Context,
	kind string,
	overlay *domain.OptionsOverlay,
	run func(context.Context, domain.SessionOptions) error,
) error {
	s.ApplyOptions(overlay)
	opts := s.Options()

	ctx, span := tracing.StartSpan(ctx, "session."+kind)
	defer span.End()
	span.SetAttributes(
		tracing.ApplicationKey.String(opts.ApplicationName),
		tracing.StreamKey.String(opts.StreamName),
		tracing.EndpointKey.String(opts.SignalURL),
	)

	if s.metrics != nil {
		s.metrics.NegotiationStarted(kind)
	}
	start := time.Now()

	if err := run(ctx, opts); err != nil {
		tracing.RecordError(ctx, err)
		if s.metrics != nil {
			s.metrics.NegotiationFailed(kind)
		}
		s.logger.Errorw("negotiation failed",
			"kind", kind,
			"application", opts.ApplicationName,
			"stream", opts.StreamName,
			"error", err,
		)
		return err
	}

	if s.metrics != nil {
		s.metrics.NegotiationCompleted(kind, time.Since(start))
	}
	s.logger.Infow("negotiation completed",
		"kind", kind,
		"application", opts.ApplicationName,
		"stream", opts.StreamName,
		"duration", time.Since(start),
	)
	return nil
}

func (s *SessionService) playRemote(ctx context.Context, opts domain.SessionOptions) error {
	sig, err := s.openSignaling(ctx, opts)
	if err != nil {
		return err
	}
	defer s.closeSignaling(sig)

	offer, err := sig.GetOffer(ctx)
	if err != nil {
		return apperrors.NewSignalingError("fetch remote offer", err)
	}

	pt, err := s.transports.NewTransport(ctx, opts.ICEServers)
	if err != nil {
		return apperrors.NewAcquisitionError("create peer transport", err)
	}
	pt.OnInboundStream(func(stream ports.InboundStream) {
		s.logger.Infow("inbound stream arrived", "stream_id", stream.ID())
		s.display.Bind(stream)
	})
	s.adoptTransport(pt)

	remote := domain.Description{
		Type: offer.Type,
		SDP:  sdpkit.ForceCompatibleProfile(offer.SDP),
	}
	if err := pt.SetRemoteDescription(remote); err != nil {
		return apperrors.NewTransportError("set remote description", err)
	}

	answer, err := pt.CreateAnswer(ctx)
	if err != nil {
		return apperrors.NewTransportError("create answer", err)
	}
	if err := pt.SetLocalDescription(answer); err != nil {
		return apperrors.NewTransportError("set local description", err)
	}

	candidates, err := sig.SendResponse(ctx, answer)
	if err != nil {
		return apperrors.NewSignalingError("submit answer", err)
	}
	return s.attachCandidates(pt, candidates)
}

func (s *SessionService) publish(ctx context.Context, opts domain.SessionOptions) error {
	sig, err := s.openSignaling(ctx, opts)
	if err != nil {
		return err
	}
	defer s.closeSignaling(sig)

	s.mu.Lock()
	src := s.localSource
	s.mu.Unlock()
	if src == nil {
		if src, err = s.StartLocalPreview(ctx, nil); err != nil {
			return err
		}
	}

	pt, err := s.transports.NewTransport(ctx, opts.ICEServers)
	if err != nil {
		return apperrors.NewAcquisitionError("create peer transport", err)
	}
	if err := pt.AttachLocalSource(src); err != nil {
		return apperrors.NewTransportError("attach local source", err)
	}
	s.adoptTransport(pt)

	offer, err := pt.CreateOffer(ctx)
	if err != nil {
		return apperrors.NewTransportError("create offer", err)
	}

	enhance := sdpkit.Enhancer(opts.VideoOptions, opts.AudioOptions)
	if opts.TransformOffer != nil {
		offer = opts.TransformOffer(offer, enhance)
	} else {
		offer = enhance(offer)
	}

	if err := pt.SetLocalDescription(offer); err != nil {
		return apperrors.NewTransportError("set local description", err)
	}

	answer, candidates, err := sig.SendOffer(ctx, offer)
	if err != nil {
		return apperrors.NewSignalingError("submit offer", err)
	}
	if err := pt.SetRemoteDescription(answer); err != nil {
		return apperrors.NewTransportError("set remote description", err)
	}
	return s.attachCandidates(pt, candidates)
}

// ListAvailableStreams asks the server which streams can be played. The
// result is advisory: every failure, including a failed dial, degrades to an
// empty list instead of an error.
func (s *SessionService) ListAvailableStreams(ctx context.Context) []domain.StreamItem {
	opts := s.Options()

	ctx, span := tracing.StartSpan(ctx, "session.list_streams")
	defer span.End()

	sig, err := s.openSignaling(ctx, opts)
	if err != nil {
		s.logger.Warnw("stream listing unavailable", "error", err)
		return []domain.StreamItem{}
	}
	defer s.closeSignaling(sig)

	items, err := sig.GetAvailableStreams(ctx)
	if err != nil {
		s.logger.Warnw("stream listing failed", "error", err)
		return []domain.StreamItem{}
	}
	if items == nil {
		items = []domain.StreamItem{}
	}
	return items
}

func (s *SessionService) openSignaling(ctx context.Context, opts domain.SessionOptions) (ports.Signaling, error) {
	sig, err := s.signals.Dial(ctx, ports.SignalRequest{
		URL:             opts.SignalURL,
		ApplicationName: opts.ApplicationName,
		StreamName:      opts.StreamName,
		UserData:        opts.UserData,
	})
	if err != nil {
		return nil, apperrors.NewSignalingError("connect to signaling server", err)
	}
	return sig, nil
}

func (s *SessionService) closeSignaling(sig ports.Signaling) {
	if err := sig.Disconnect(); err != nil {
		s.logger.Warnw("signaling disconnect failed", "error", err)
	}
}

// adoptTransport installs pt as the owned transport. A previously owned
// transport is superseded but not closed; the caller stops it explicitly.
func (s *SessionService) adoptTransport(pt ports.PeerTransport) {
	s.mu.Lock()
	prior := s.transport
	s.transport = pt
	s.mu.Unlock()

	if prior != nil {
		s.logger.Debugw("superseding active peer transport without closing it")
	}
	if s.metrics != nil {
		s.metrics.TransportOpened()
	}
}

// attachCandidates forwards candidates in received order. Both descriptions
// of the round are already set by the time this runs.
func (s *SessionService) attachCandidates(pt ports.PeerTransport, candidates []domain.Candidate) error {
	for _, cand := range candidates {
		if err := pt.AttachCandidate(cand); err != nil {
			return apperrors.NewTransportError("attach candidate", err)
		}
	}
	return nil
}
