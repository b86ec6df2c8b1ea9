// Package signal implements the short-lived signaling channel to the
// streaming server: JSON commands over a websocket, one channel per
// negotiation call.
package signal

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"webcaster/internal/core/domain"
	"webcaster/internal/core/ports"
	"webcaster/pkg/auth"
	"webcaster/pkg/retry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DialerConfig tunes the websocket connection to the signaling endpoint.
type DialerConfig struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	Retry            retry.Config
}

// DefaultDialerConfig mirrors what interactive playback tolerates.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     10 * time.Second,
		Retry:            retry.DefaultConfig(),
	}
}

// Dialer opens signaling sessions. Dial retries are transport-level only;
// once a session is open, commands run exactly once.
type Dialer struct {
	cfg    DialerConfig
	tokens *auth.TokenProvider
	logger *zap.SugaredLogger
}

// NewDialer creates a signaling dialer. tokens may be nil when the server
// does not require connect tokens.
func NewDialer(cfg DialerConfig, tokens *auth.TokenProvider, logger *zap.Logger) *Dialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{cfg: cfg, tokens: tokens, logger: logger.Sugar()}
}

// Dial connects to the signaling endpoint and returns a session scoped to one
// negotiation call.
func (d *Dialer) Dial(ctx context.Context, req ports.SignalRequest) (ports.Signaling, error) {
	header := http.Header{}
	if d.tokens != nil {
		token, err := d.tokens.ConnectToken(req.ApplicationName, req.StreamName)
		if err != nil {
			return nil, fmt.Errorf("sign connect token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	wsDialer := websocket.Dialer{HandshakeTimeout: d.cfg.HandshakeTimeout}
	conn, err := retry.DoWithResult(ctx, d.cfg.Retry, func() (*websocket.Conn, error) {
		c, resp, derr := wsDialer.DialContext(ctx, req.URL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return c, derr
	})
	if err != nil {
		return nil, fmt.Errorf("dial signaling endpoint %s: %w", req.URL, err)
	}

	sess := &Session{
		conn:         conn,
		localID:      uuid.NewString(),
		sessionID:    sessionIDPlaceholder,
		application:  req.ApplicationName,
		streamName:   req.StreamName,
		userData:     req.UserData,
		readTimeout:  d.cfg.ReadTimeout,
		writeTimeout: d.cfg.WriteTimeout,
		logger:       d.logger,
	}
	d.logger.Debugw("signaling session opened",
		"session", sess.localID,
		"endpoint", req.URL,
		"application", req.ApplicationName,
		"stream", req.StreamName,
	)
	return sess, nil
}

// Session is one signaling channel. Commands are serialized; the server
// answers each request on the same connection.
type Session struct {
	conn *websocket.Conn

	mu          sync.Mutex
	closed      bool
	sessionID   string
	localID     string
	application string
	streamName  string
	userData    interface{}

	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *zap.SugaredLogger
}

// GetOffer fetches the server's offer for playback.
func (s *Session) GetOffer(ctx context.Context) (domain.Description, error) {
	resp, err := s.roundTrip(ctx, directionPlay, commandGetOffer, nil)
	if err != nil {
		return domain.Description{}, err
	}
	if resp.SDP == nil {
		return domain.Description{}, fmt.Errorf("%s response carried no session description", commandGetOffer)
	}
	return domain.Description{Type: resp.SDP.Type, SDP: resp.SDP.SDP}, nil
}

// SendResponse submits the local answer and returns the server's candidates.
func (s *Session) SendResponse(ctx context.Context, answer domain.Description) ([]domain.Candidate, error) {
	resp, err := s.roundTrip(ctx, directionPlay, commandSendResponse, &wireDescription{Type: answer.Type, SDP: answer.SDP})
	if err != nil {
		return nil, err
	}
	return toCandidates(resp.ICECandidates), nil
}

// SendOffer submits the local offer and returns the server's answer plus
// candidates.
func (s *Session) SendOffer(ctx context.Context, offer domain.Description) (domain.Description, []domain.Candidate, error) {
	resp, err := s.roundTrip(ctx, directionPublish, commandSendOffer, &wireDescription{Type: offer.Type, SDP: offer.SDP})
	if err != nil {
		return domain.Description{}, nil, err
	}
	if resp.SDP == nil {
		return domain.Description{}, nil, fmt.Errorf("%s response carried no session description", commandSendOffer)
	}
	answer := domain.Description{Type: resp.SDP.Type, SDP: resp.SDP.SDP}
	return answer, toCandidates(resp.ICECandidates), nil
}

// GetAvailableStreams asks which streams the application offers for playback.
func (s *Session) GetAvailableStreams(ctx context.Context) ([]domain.StreamItem, error) {
	resp, err := s.roundTrip(ctx, directionPlay, commandGetAvailableStreams, nil)
	if err != nil {
		return nil, err
	}
	return toStreamItems(resp.AvailableStreams), nil
}

// Disconnect closes the channel. Repeated calls are no-ops.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	deadline := time.Now().Add(s.writeTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := s.conn.Close()
	s.logger.Debugw("signaling session closed", "session", s.localID)
	return err
}

func (s *Session) roundTrip(ctx context.Context, direction, command string, sdp *wireDescription) (*wireResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("signaling session already disconnected")
	}

	req := wireRequest{
		Direction: direction,
		Command:   command,
		StreamInfo: wireStreamInfo{
			ApplicationName: s.application,
			SessionID:       s.sessionID,
			StreamName:      s.streamName,
		},
		SDP:      sdp,
		UserData: s.userData,
	}

	if err := s.conn.SetWriteDeadline(s.deadline(ctx, s.writeTimeout)); err != nil {
		return nil, fmt.Errorf("%s: set write deadline: %w", command, err)
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("%s: write request: %w", command, err)
	}

	if err := s.conn.SetReadDeadline(s.deadline(ctx, s.readTimeout)); err != nil {
		return nil, fmt.Errorf("%s: set read deadline: %w", command, err)
	}
	var resp wireResponse
	if err := s.conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("%s: read response: %w", command, err)
	}

	if resp.StreamInfo != nil && resp.StreamInfo.SessionID != "" {
		s.sessionID = resp.StreamInfo.SessionID
	}

	if resp.Status != statusOK {
		if resp.Status == statusStreamNotFound {
			return nil, fmt.Errorf("%s: %w: %s", command, domain.ErrStreamNotFound, resp.StatusDescription)
		}
		return nil, fmt.Errorf("%s: server status %d: %s", command, resp.Status, resp.StatusDescription)
	}
	return &resp, nil
}

func (s *Session) deadline(ctx context.Context, fallback time.Duration) time.Time {
	deadline := time.Now().Add(fallback)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}
