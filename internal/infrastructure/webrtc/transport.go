// Package webrtc adapts a pion peer connection to the narrow transport
// contract the session orchestrator drives.
package webrtc

import (
	"context"
	"fmt"
	"sync"

	"webcaster/internal/core/domain"
	"webcaster/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// FactoryConfig holds transport-level settings shared by all negotiations.
type FactoryConfig struct {
	PortRange struct {
		Min uint16
		Max uint16
	}
}

// Factory builds one fresh peer transport per negotiation round.
type Factory struct {
	cfg    FactoryConfig
	logger *zap.SugaredLogger
}

func NewFactory(cfg FactoryConfig, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: logger.Sugar()}
}

// NewTransport creates a peer connection configured with the session's ICE
// servers.
func (f *Factory) NewTransport(_ context.Context, iceServers []domain.ICEServer) (ports.PeerTransport, error) {
	config := webrtc.Configuration{
		ICEServers:   toICEServers(iceServers),
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	}

	settingEngine := webrtc.SettingEngine{}
	if f.cfg.PortRange.Min > 0 && f.cfg.PortRange.Max > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(f.cfg.PortRange.Min, f.cfg.PortRange.Max); err != nil {
			return nil, fmt.Errorf("set udp port range: %w", err)
		}
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &Transport{
		id:      uuid.NewString(),
		pc:      pc,
		streams: make(map[string]*inboundStream),
		logger:  f.logger,
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		t.logger.Infow("ice connection state changed", "transport", t.id, "ice_state", state.String())
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.logger.Infow("peer connection state changed", "transport", t.id, "connection_state", state.String())
	})
	pc.OnTrack(t.handleTrack)

	return t, nil
}

func toICEServers(servers []domain.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}

// Transport wraps one *webrtc.PeerConnection for one negotiation round.
type Transport struct {
	id string
	pc *webrtc.PeerConnection

	mu       sync.Mutex
	onStream func(ports.InboundStream)
	streams  map[string]*inboundStream

	logger *zap.SugaredLogger
}

func (t *Transport) CreateOffer(_ context.Context) (domain.Description, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return domain.Description{}, err
	}
	return domain.Description{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (t *Transport) CreateAnswer(_ context.Context) (domain.Description, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return domain.Description{}, err
	}
	return domain.Description{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (t *Transport) SetLocalDescription(desc domain.Description) error {
	return t.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (t *Transport) SetRemoteDescription(desc domain.Description) error {
	return t.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (t *Transport) AttachCandidate(cand domain.Candidate) error {
	return t.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	})
}

func (t *Transport) AttachLocalSource(src ports.LocalSource) error {
	for _, track := range src.Tracks() {
		if _, err := t.pc.AddTrack(track); err != nil {
			return fmt.Errorf("add track %s: %w", track.ID(), err)
		}
	}
	return nil
}

// OnInboundStream registers the handler fired when a remote stream arrives.
// Registration is per transport; a new transport starts clean.
func (t *Transport) OnInboundStream(fn func(ports.InboundStream)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStream = fn
}

func (t *Transport) Close() error {
	return t.pc.Close()
}

func (t *Transport) NativeHandle() interface{} {
	return t.pc
}

// handleTrack groups remote tracks by their stream id and fires the inbound
// handler once per stream, when its first track shows up.
func (t *Transport) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	t.logger.Infow("remote track arrived",
		"transport", t.id,
		"track_id", track.ID(),
		"stream_id", track.StreamID(),
		"codec", track.Codec().MimeType,
	)

	t.mu.Lock()
	stream, known := t.streams[track.StreamID()]
	if !known {
		stream = &inboundStream{id: track.StreamID(), pc: t.pc}
		t.streams[track.StreamID()] = stream
	}
	stream.addTrack(track)
	fn := t.onStream
	t.mu.Unlock()

	if !known && fn != nil {
		fn(stream)
	}
}

// inboundStream collects the remote tracks sharing one stream id.
type inboundStream struct {
	id string
	pc *webrtc.PeerConnection

	mu     sync.Mutex
	tracks []*webrtc.TrackRemote
}

func (s *inboundStream) ID() string {
	return s.id
}

func (s *inboundStream) addTrack(track *webrtc.TrackRemote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, track)
}

func (s *inboundStream) Tracks() []*webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*webrtc.TrackRemote, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// RequestKeyFrame sends a PLI for every video track so the sender refreshes.
func (s *inboundStream) RequestKeyFrame() error {
	for _, track := range s.Tracks() {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
		if err := s.pc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
			return fmt.Errorf("write pli for track %s: %w", track.ID(), err)
		}
	}
	return nil
}
