package http

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
	"webcaster/internal/core/services"
	"webcaster/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSignal struct {
	streams []domain.StreamItem
	listErr error
	calls   int
}

func (s *stubSignal) GetOffer(context.Context) (domain.Description, error) {
	return domain.Description{}, errors.New("not scripted")
}

func (s *stubSignal) SendResponse(context.Context, domain.Description) ([]domain.Candidate, error) {
	return nil, errors.New("not scripted")
}

func (s *stubSignal) SendOffer(context.Context, domain.Description) (domain.Description, []domain.Candidate, error) {
	return domain.Description{}, nil, errors.New("not scripted")
}

func (s *stubSignal) GetAvailableStreams(context.Context) ([]domain.StreamItem, error) {
	s.calls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.streams, nil
}

func (s *stubSignal) Disconnect() error { return nil }

type stubDialer struct {
	sig *stubSignal
	err error
}

func (d *stubDialer) Dial(context.Context, ports.SignalRequest) (ports.Signaling, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.sig, nil
}

func newTestRouter(t *testing.T, dialer ports.SignalDialer, cache ports.StreamCache) (*gin.Engine, *stubSignal) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var sig *stubSignal
	if sd, ok := dialer.(*stubDialer); ok {
		sig = sd.sig
	}

	sessions := services.NewSessionService(nil, nil, dialer, nil, nil, domain.SessionOptions{
		SignalURL:       "wss://media.example.com/webrtc-session.json",
		ApplicationName: "live",
		StreamName:      "studio",
	}, nil)

	router := gin.New()
	NewSessionHandler(sessions, cache, nil).SetupRoutes(router)
	return router, sig
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func post(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubDialer{sig: &stubSignal{}}, nil)

	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListStreamsFetchesAndCaches(t *testing.T) {
	dialer := &stubDialer{sig: &stubSignal{streams: []domain.StreamItem{{Name: "studio"}, {Name: "backstage"}}}}
	cache := memory.NewStreamCache(time.Minute)
	router, sig := newTestRouter(t, dialer, cache)

	w := get(router, "/api/v1/streams")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"streams":["studio","backstage"],"cached":false}`, w.Body.String())
	assert.Equal(t, 1, sig.calls)

	// Second hit is served from the cache without another round-trip.
	w = get(router, "/api/v1/streams")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"streams":["studio","backstage"],"cached":true}`, w.Body.String())
	assert.Equal(t, 1, sig.calls)
}

func TestListStreamsNeverFails(t *testing.T) {
	dialer := &stubDialer{err: errors.New("connection refused")}
	router, _ := newTestRouter(t, dialer, nil)

	w := get(router, "/api/v1/streams")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"streams":[],"cached":false}`, w.Body.String())
}

func TestPlayRejectsMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t, &stubDialer{sig: &stubSignal{}}, nil)

	w := post(router, "/api/v1/sessions/play", `{"stream_name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlayMapsSignalingFailureToBadGateway(t *testing.T) {
	dialer := &stubDialer{err: errors.New("connection refused")}
	router, _ := newTestRouter(t, dialer, nil)

	w := post(router, "/api/v1/sessions/play", `{}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "SIGNALING_FAILED")
}

func TestStopIsAlwaysOK(t *testing.T) {
	router, _ := newTestRouter(t, &stubDialer{sig: &stubSignal{}}, nil)

	w := post(router, "/api/v1/sessions/stop", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"stopped"}`, w.Body.String())
}

func TestTransportStateReportsInactive(t *testing.T) {
	router, _ := newTestRouter(t, &stubDialer{sig: &stubSignal{}}, nil)

	w := get(router, "/api/v1/sessions/transport")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active":false}`, w.Body.String())
}

func TestSessionRequestOverlayMergesOntoCurrent(t *testing.T) {
	video := true
	bitrate := 750
	req := sessionRequest{Video: &video, VideoBitrate: &bitrate}

	current := domain.SessionOptions{
		Constraints:  domain.MediaConstraints{Audio: true},
		VideoOptions: domain.VideoOptions{CodecName: "h264", FrameRate: 30},
	}
	overlay := req.overlay(current)

	require.NotNil(t, overlay.Constraints)
	assert.Equal(t, domain.MediaConstraints{Audio: true, Video: true}, *overlay.Constraints)

	require.NotNil(t, overlay.VideoOptions)
	assert.Equal(t, domain.VideoOptions{Bitrate: 750, CodecName: "h264", FrameRate: 30}, *overlay.VideoOptions)

	assert.Nil(t, overlay.AudioOptions)
	assert.Nil(t, overlay.StreamName)
}
