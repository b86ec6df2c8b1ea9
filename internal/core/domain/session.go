package domain

// Description is one side's proposed media session: an SDP blob plus its
// role in the offer/answer exchange.
type Description struct {
	Type string // "offer" or "answer"
	SDP  string
}

// Candidate is a discovered network path for the peer transport. SDPMid and
// SDPMLineIndex may be absent on the wire, so they stay pointers.
type Candidate struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// StreamItem describes one stream the server reports as available for playback.
type StreamItem struct {
	Name       string
	AudioCodec string
	VideoCodec string
}

// MediaConstraints selects which kinds of local media to request from capture.
type MediaConstraints struct {
	Audio bool
	Video bool
}

// DefaultConstraints is what capture is asked for when the caller never set any.
func DefaultConstraints() MediaConstraints {
	return MediaConstraints{Audio: true, Video: true}
}

// VideoOptions are the video encode preferences injected into outgoing offers.
type VideoOptions struct {
	Bitrate   int // kbps, 0 = leave offer untouched
	CodecName string
	FrameRate float64
}

// AudioOptions are the audio encode preferences injected into outgoing offers.
type AudioOptions struct {
	CodecName string
	Bitrate   int // kbps
}

// ICEServer is a relay/reflection server handed to the peer transport.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// TransformFunc is a pure session-description transform.
type TransformFunc func(Description) Description

// OfferHook lets the caller take over offer enhancement during publish. It
// receives the raw offer and the default transform, and may call the default,
// modify its output, or replace it entirely.
type OfferHook func(offer Description, defaultTransform TransformFunc) Description

// SessionOptions is the orchestrator-held configuration a negotiation runs with.
type SessionOptions struct {
	SignalURL       string
	ApplicationName string
	StreamName      string
	Constraints     MediaConstraints
	VideoOptions    VideoOptions
	AudioOptions    AudioOptions
	ICEServers      []ICEServer
	// UserData is an opaque payload passed through to the signaling server.
	// A nil value is legitimate, see OptionsOverlay.UserData.
	UserData       interface{}
	TransformOffer OfferHook
}

// OptionsOverlay is a partial configuration. A nil field means "leave the
// current value alone"; only present fields overwrite. UserData is doubly
// indirect because nil is a valid payload and must still overwrite when the
// caller supplied it explicitly.
type OptionsOverlay struct {
	SignalURL       *string
	ApplicationName *string
	StreamName      *string
	Constraints     *MediaConstraints
	VideoOptions    *VideoOptions
	AudioOptions    *AudioOptions
	ICEServers      []ICEServer
	UserData        *interface{}
	TransformOffer  OfferHook
}

// Apply overlays the present fields onto o, leaving everything else untouched.
func (o *SessionOptions) Apply(overlay *OptionsOverlay) {
	if overlay == nil {
		return
	}
	if overlay.SignalURL != nil {
		o.SignalURL = *overlay.SignalURL
	}
	if overlay.ApplicationName != nil {
		o.ApplicationName = *overlay.ApplicationName
	}
	if overlay.StreamName != nil {
		o.StreamName = *overlay.StreamName
	}
	if overlay.Constraints != nil {
		o.Constraints = *overlay.Constraints
	}
	if overlay.VideoOptions != nil {
		o.VideoOptions = *overlay.VideoOptions
	}
	if overlay.AudioOptions != nil {
		o.AudioOptions = *overlay.AudioOptions
	}
	if overlay.ICEServers != nil {
		o.ICEServers = overlay.ICEServers
	}
	if overlay.UserData != nil {
		// Presence, not truthiness: *overlay.UserData may itself be nil.
		o.UserData = *overlay.UserData
	}
	if overlay.TransformOffer != nil {
		o.TransformOffer = overlay.TransformOffer
	}
}
