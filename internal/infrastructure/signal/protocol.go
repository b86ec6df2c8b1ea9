package signal

import "webcaster/internal/core/domain"

// Wire envelopes for the streaming server's JSON signaling protocol. One
// request/response pair per command; sessionId starts as a placeholder and is
// echoed back by the server once assigned.

const (
	directionPlay    = "play"
	directionPublish = "publish"

	commandGetOffer            = "getOffer"
	commandSendResponse        = "sendResponse"
	commandSendOffer           = "sendOffer"
	commandGetAvailableStreams = "getAvailableStreams"

	sessionIDPlaceholder = "[empty]"
	statusOK             = 200
	statusStreamNotFound = 514
)

type wireStreamInfo struct {
	ApplicationName string `json:"applicationName"`
	SessionID       string `json:"sessionId"`
	StreamName      string `json:"streamName"`
}

type wireDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type wireCandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

type wireStream struct {
	StreamName string `json:"streamName"`
	CodecAudio string `json:"codecAudio,omitempty"`
	CodecVideo string `json:"codecVideo,omitempty"`
}

type wireRequest struct {
	Direction  string           `json:"direction"`
	Command    string           `json:"command"`
	StreamInfo wireStreamInfo   `json:"streamInfo"`
	SDP        *wireDescription `json:"sdp,omitempty"`
	UserData   interface{}      `json:"userData,omitempty"`
}

type wireResponse struct {
	Status            int              `json:"status"`
	StatusDescription string           `json:"statusDescription"`
	Direction         string           `json:"direction"`
	Command           string           `json:"command"`
	StreamInfo        *wireStreamInfo  `json:"streamInfo,omitempty"`
	SDP               *wireDescription `json:"sdp,omitempty"`
	ICECandidates     []wireCandidate  `json:"iceCandidates,omitempty"`
	AvailableStreams  []wireStream     `json:"availableStreams,omitempty"`
}

func toCandidates(wire []wireCandidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(wire))
	for _, c := range wire {
		out = append(out, domain.Candidate{
			Candidate:     c.Candidate,
			SDPMid:        c.SDPMid,
			SDPMLineIndex: c.SDPMLineIndex,
		})
	}
	return out
}

func toStreamItems(wire []wireStream) []domain.StreamItem {
	out := make([]domain.StreamItem, 0, len(wire))
	for _, s := range wire {
		out = append(out, domain.StreamItem{
			Name:       s.StreamName,
			AudioCodec: s.CodecAudio,
			VideoCodec: s.CodecVideo,
		})
	}
	return out
}
