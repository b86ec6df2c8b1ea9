package http

import (
	"net/http"

	"webcaster/internal/core/domain"
	"webcaster/internal/core/ports"
	"webcaster/internal/core/services"
	apperrors "webcaster/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes the session orchestrator over a local control API.
type SessionHandler struct {
	sessions *services.SessionService
	cache    ports.StreamCache
	logger   *zap.SugaredLogger
}

func NewSessionHandler(sessions *services.SessionService, cache ports.StreamCache, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		sessions: sessions,
		cache:    cache,
		logger:   logger.Sugar(),
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions/play", h.Play)
		api.POST("/sessions/publish", h.Publish)
		api.POST("/sessions/preview", h.StartPreview)
		api.POST("/sessions/stop", h.Stop)
		api.GET("/sessions/transport", h.TransportState)
		api.GET("/streams", h.ListStreams)
	}
	router.GET("/health", h.Health)
}

// sessionRequest is the overlay callers may send with play/publish. Absent
// fields keep the configured values.
type sessionRequest struct {
	SignalURL       *string  `json:"signal_url"`
	ApplicationName *string  `json:"application_name"`
	StreamName      *string  `json:"stream_name"`
	Audio           *bool    `json:"audio"`
	Video           *bool    `json:"video"`
	VideoBitrate    *int     `json:"video_bitrate"`
	VideoFrameRate  *float64 `json:"video_frame_rate"`
	AudioBitrate    *int     `json:"audio_bitrate"`
}

func (r *sessionRequest) overlay(current domain.SessionOptions) *domain.OptionsOverlay {
	overlay := &domain.OptionsOverlay{
		SignalURL:       r.SignalURL,
		ApplicationName: r.ApplicationName,
		StreamName:      r.StreamName,
	}
	if r.Audio != nil || r.Video != nil {
		cons := current.Constraints
		if r.Audio != nil {
			cons.Audio = *r.Audio
		}
		if r.Video != nil {
			cons.Video = *r.Video
		}
		overlay.Constraints = &cons
	}
	if r.VideoBitrate != nil || r.VideoFrameRate != nil {
		video := current.VideoOptions
		if r.VideoBitrate != nil {
			video.Bitrate = *r.VideoBitrate
		}
		if r.VideoFrameRate != nil {
			video.FrameRate = *r.VideoFrameRate
		}
		overlay.VideoOptions = &video
	}
	if r.AudioBitrate != nil {
		audio := current.AudioOptions
		audio.Bitrate = *r.AudioBitrate
		overlay.AudioOptions = &audio
	}
	return overlay
}

func (h *SessionHandler) Play(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.PlayRemote(c.Request.Context(), req.overlay(h.sessions.Options())); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "playing"})
}

func (h *SessionHandler) Publish(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Publish(c.Request.Context(), req.overlay(h.sessions.Options())); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "publishing"})
}

func (h *SessionHandler) StartPreview(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var constraints *domain.MediaConstraints
	if overlay := req.overlay(h.sessions.Options()); overlay.Constraints != nil {
		constraints = overlay.Constraints
	}

	src, err := h.sessions.StartLocalPreview(c.Request.Context(), constraints)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "previewing", "source_id": src.ID()})
}

func (h *SessionHandler) Stop(c *gin.Context) {
	h.sessions.StopLocalPreview()
	c.JSON(http.StatusOK, gin.H{"state": "stopped"})
}

func (h *SessionHandler) TransportState(c *gin.Context) {
	active := h.sessions.ActiveTransport() != nil
	c.JSON(http.StatusOK, gin.H{"active": active})
}

// ListStreams serves from the cache when fresh, otherwise asks the server.
// The listing is advisory, so this endpoint never fails.
func (h *SessionHandler) ListStreams(c *gin.Context) {
	ctx := c.Request.Context()
	application := h.sessions.Options().ApplicationName

	if h.cache != nil {
		if items, ok := h.cache.Get(ctx, application); ok {
			c.JSON(http.StatusOK, gin.H{"streams": streamNames(items), "cached": true})
			return
		}
	}

	items := h.sessions.ListAvailableStreams(ctx)
	if h.cache != nil {
		h.cache.Set(ctx, application, items)
	}
	c.JSON(http.StatusOK, gin.H{"streams": streamNames(items), "cached": false})
}

func (h *SessionHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func streamNames(items []domain.StreamItem) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

func (h *SessionHandler) renderError(c *gin.Context, err error) {
	h.logger.Errorw("session operation failed", "path", c.FullPath(), "error", err)
	if appErr, ok := apperrors.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": string(appErr.Code)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
