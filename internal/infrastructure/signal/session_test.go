package signal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webcaster/internal/core/domain"
	"webcaster/internal/core/ports"
	"webcaster/pkg/auth"
	"webcaster/pkg/retry"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// fakeServer speaks one scripted command/response exchange per received
// request and records what the client sent.
type fakeServer struct {
	t         *testing.T
	respond   func(req wireRequest) wireResponse
	requests  chan wireRequest
	authToken chan string
}

func newFakeServer(t *testing.T, respond func(req wireRequest) wireResponse) (*fakeServer, string) {
	fs := &fakeServer{
		t:         t,
		respond:   respond,
		requests:  make(chan wireRequest, 8),
		authToken: make(chan string, 1),
	}
	server := httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(server.Close)
	return fs, "ws" + strings.TrimPrefix(server.URL, "http")
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	select {
	case fs.authToken <- r.Header.Get("Authorization"):
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req wireRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		fs.requests <- req
		if err := conn.WriteJSON(fs.respond(req)); err != nil {
			return
		}
	}
}

func testDialer(t *testing.T, tokens *auth.TokenProvider) *Dialer {
	t.Helper()
	cfg := DefaultDialerConfig()
	cfg.Retry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return NewDialer(cfg, tokens, nil)
}

func dialSession(t *testing.T, d *Dialer, url string) ports.Signaling {
	t.Helper()
	sess, err := d.Dial(context.Background(), ports.SignalRequest{
		URL:             url,
		ApplicationName: "live",
		StreamName:      "studio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Disconnect() })
	return sess
}

func TestGetOfferRoundTrip(t *testing.T) {
	fs, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{
			Status:     statusOK,
			Direction:  req.Direction,
			Command:    req.Command,
			StreamInfo: &wireStreamInfo{ApplicationName: "live", SessionID: "srv-42", StreamName: "studio"},
			SDP:        &wireDescription{Type: "offer", SDP: "v=0\r\n"},
		}
	})

	sess := dialSession(t, testDialer(t, nil), url)

	offer, err := sess.GetOffer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "offer", offer.Type)
	assert.Equal(t, "v=0\r\n", offer.SDP)

	req := <-fs.requests
	assert.Equal(t, directionPlay, req.Direction)
	assert.Equal(t, commandGetOffer, req.Command)
	assert.Equal(t, "live", req.StreamInfo.ApplicationName)
	assert.Equal(t, "studio", req.StreamInfo.StreamName)
	assert.Equal(t, sessionIDPlaceholder, req.StreamInfo.SessionID)
}

func TestSessionIDAdoptedFromResponse(t *testing.T) {
	fs, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{
			Status:     statusOK,
			StreamInfo: &wireStreamInfo{SessionID: "srv-42"},
			SDP:        &wireDescription{Type: "offer", SDP: "v=0\r\n"},
		}
	})

	sess := dialSession(t, testDialer(t, nil), url)

	_, err := sess.GetOffer(context.Background())
	require.NoError(t, err)
	<-fs.requests

	_, err = sess.SendResponse(context.Background(), domain.Description{Type: "answer", SDP: "v=0\r\n"})
	require.NoError(t, err)

	second := <-fs.requests
	assert.Equal(t, commandSendResponse, second.Command)
	assert.Equal(t, "srv-42", second.StreamInfo.SessionID)
	require.NotNil(t, second.SDP)
	assert.Equal(t, "answer", second.SDP.Type)
}

func TestSendOfferReturnsAnswerAndCandidates(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	fs, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{
			Status: statusOK,
			SDP:    &wireDescription{Type: "answer", SDP: "v=0\r\n"},
			ICECandidates: []wireCandidate{
				{Candidate: "candidate:1", SDPMid: &mid, SDPMLineIndex: &idx},
				{Candidate: "candidate:2"},
			},
		}
	})

	sess := dialSession(t, testDialer(t, nil), url)

	answer, candidates, err := sess.SendOffer(context.Background(), domain.Description{Type: "offer", SDP: "v=0\r\n"})
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Type)

	require.Len(t, candidates, 2)
	require.NotNil(t, candidates[0].SDPMid)
	assert.Equal(t, "0", *candidates[0].SDPMid)
	assert.Nil(t, candidates[1].SDPMid)
	assert.Nil(t, candidates[1].SDPMLineIndex)

	req := <-fs.requests
	assert.Equal(t, directionPublish, req.Direction)
	assert.Equal(t, commandSendOffer, req.Command)
}

func TestStreamNotFoundStatusMapsToDomainError(t *testing.T) {
	_, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{Status: statusStreamNotFound, StatusDescription: "stream not found"}
	})

	sess := dialSession(t, testDialer(t, nil), url)

	_, err := sess.GetOffer(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStreamNotFound))
}

func TestNonOKStatusIsAnError(t *testing.T) {
	_, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{Status: 500, StatusDescription: "server error"}
	})

	sess := dialSession(t, testDialer(t, nil), url)

	_, err := sess.GetOffer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server status 500")
}

func TestGetAvailableStreamsMapsWireStreams(t *testing.T) {
	_, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{
			Status: statusOK,
			AvailableStreams: []wireStream{
				{StreamName: "studio", CodecAudio: "opus", CodecVideo: "H264"},
				{StreamName: "backstage"},
			},
		}
	})

	sess := dialSession(t, testDialer(t, nil), url)

	items, err := sess.GetAvailableStreams(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.StreamItem{Name: "studio", AudioCodec: "opus", VideoCodec: "H264"}, items[0])
	assert.Equal(t, "backstage", items[1].Name)
}

func TestDisconnectIsIdempotentAndEndsTheSession(t *testing.T) {
	_, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{Status: statusOK, SDP: &wireDescription{Type: "offer", SDP: "v=0\r\n"}}
	})

	sess := dialSession(t, testDialer(t, nil), url)

	require.NoError(t, sess.Disconnect())
	require.NoError(t, sess.Disconnect())

	_, err := sess.GetOffer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already disconnected")
}

func TestDialStampsConnectToken(t *testing.T) {
	fs, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{Status: statusOK}
	})

	secret := "test-secret"
	tokens := auth.NewTokenProvider(secret, time.Minute)
	require.NotNil(t, tokens)

	dialSession(t, testDialer(t, tokens), url)

	header := <-fs.authToken
	require.True(t, strings.HasPrefix(header, "Bearer "))

	claims := &auth.ConnectClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "live", claims.ApplicationName)
	assert.Equal(t, "studio", claims.StreamName)
}

func TestDialWithoutTokenProviderSendsNoAuthorization(t *testing.T) {
	fs, url := newFakeServer(t, func(req wireRequest) wireResponse {
		return wireResponse{Status: statusOK}
	})

	dialSession(t, testDialer(t, nil), url)

	assert.Empty(t, <-fs.authToken)
}

func TestDialFailsFastAgainstDeadEndpoint(t *testing.T) {
	d := testDialer(t, nil)
	_, err := d.Dial(context.Background(), ports.SignalRequest{URL: "ws://127.0.0.1:1/webrtc-session.json"})
	require.Error(t, err)
}
