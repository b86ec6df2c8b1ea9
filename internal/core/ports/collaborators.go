package ports

import (
	"context"
	"time"

	"webcaster/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// MediaSource is anything the display surface can be bound to. Identity is
// compared by ID: rebinding the same source is a no-op.
type MediaSource interface {
	ID() string
}

// LocalSource is a capture-owned set of local tracks. The orchestrator owns at
// most one at a time and stops it on teardown.
type LocalSource interface {
	MediaSource
	Tracks() []webrtc.TrackLocal
	Stop()
}

// InboundStream is a remote stream delivered by the peer transport.
type InboundStream interface {
	MediaSource
	Tracks() []*webrtc.TrackRemote
	// RequestKeyFrame asks the sender to refresh video, typically via RTCP PLI.
	RequestKeyFrame() error
}

// Capture acquires local media per constraints. Fails when devices or
// permissions are unavailable; never retried by the orchestrator.
type Capture interface {
	Acquire(ctx context.Context, constraints domain.MediaConstraints) (LocalSource, error)
}

// PeerTransport is the narrow contract over the underlying WebRTC peer
// connection. Descriptions handed to it must already have passed their
// rewrite step and are never mutated afterwards.
type PeerTransport interface {
	CreateOffer(ctx context.Context) (domain.Description, error)
	CreateAnswer(ctx context.Context) (domain.Description, error)
	SetLocalDescription(desc domain.Description) error
	SetRemoteDescription(desc domain.Description) error
	// AttachCandidate must only be called after both descriptions of the
	// current round are set.
	AttachCandidate(cand domain.Candidate) error
	AttachLocalSource(src LocalSource) error
	// OnInboundStream registers the handler fired when a remote stream
	// arrives. Registration is per transport instance, not global.
	OnInboundStream(fn func(InboundStream))
	Close() error
	NativeHandle() interface{}
}

// TransportFactory builds a fresh peer transport for one negotiation round.
type TransportFactory interface {
	NewTransport(ctx context.Context, iceServers []domain.ICEServer) (PeerTransport, error)
}

// SignalRequest identifies the session a signaling channel is opened for.
// SessionID carries the server placeholder until the server assigns one.
type SignalRequest struct {
	URL             string
	ApplicationName string
	StreamName      string
	UserData        interface{}
}

// Signaling is one short-lived channel to the remote server, scoped to a
// single negotiation call. Disconnect must always be invoked at call exit.
type Signaling interface {
	GetOffer(ctx context.Context) (domain.Description, error)
	SendResponse(ctx context.Context, answer domain.Description) ([]domain.Candidate, error)
	SendOffer(ctx context.Context, offer domain.Description) (domain.Description, []domain.Candidate, error)
	GetAvailableStreams(ctx context.Context) ([]domain.StreamItem, error)
	Disconnect() error
}

// SignalDialer opens a signaling channel. Transport-level dial retries live
// behind this boundary; negotiation round-trips are never retried.
type SignalDialer interface {
	Dial(ctx context.Context, req SignalRequest) (Signaling, error)
}

// Display binds a media source to a visible surface, replacing the current
// binding only when the source identity differs.
type Display interface {
	Bind(src MediaSource)
}

// Metrics receives negotiation lifecycle signals. Implementations must be
// safe to call with a zero-value receiver semantics in mind; the orchestrator
// tolerates a nil Metrics.
type Metrics interface {
	NegotiationStarted(kind string)
	NegotiationFailed(kind string)
	NegotiationCompleted(kind string, d time.Duration)
	TransportOpened()
	TransportClosed()
}
