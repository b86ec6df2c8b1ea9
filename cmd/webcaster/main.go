package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"webcaster/internal/core/domain"
	"webcaster/internal/core/ports"
	"webcaster/internal/core/services"
	handlers "webcaster/internal/handlers/http"
	"webcaster/internal/infrastructure/capture"
	"webcaster/internal/infrastructure/display"
	"webcaster/internal/infrastructure/middleware"
	"webcaster/internal/infrastructure/monitoring"
	memrepo "webcaster/internal/infrastructure/repositories/memory"
	redisrepo "webcaster/internal/infrastructure/repositories/redis"
	signaladapter "webcaster/internal/infrastructure/signal"
	webrtcadapter "webcaster/internal/infrastructure/webrtc"
	"webcaster/pkg/auth"
	"webcaster/pkg/config"
	"webcaster/pkg/logger"
	"webcaster/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog := logger.New(cfg.Logging.Level)
	defer zlog.Sync()
	sugar := zlog.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		sugar.Fatalw("init tracing", "error", err)
	}
	defer tp.Shutdown(context.Background())

	registry := prometheus.NewRegistry()
	collector := monitoring.NewCollector(registry)

	tokens := auth.NewTokenProvider(cfg.Signal.TokenSecret, cfg.Signal.TokenTTL)
	dialer := signaladapter.NewDialer(signaladapter.DialerConfig{
		HandshakeTimeout: cfg.Signal.HandshakeTimeout,
		ReadTimeout:      cfg.Signal.ReadTimeout,
		WriteTimeout:     cfg.Signal.WriteTimeout,
		Retry:            signaladapter.DefaultDialerConfig().Retry,
	}, tokens, zlog)

	factoryCfg := webrtcadapter.FactoryConfig{}
	factoryCfg.PortRange.Min = cfg.WebRTC.PortRange.Min
	factoryCfg.PortRange.Max = cfg.WebRTC.PortRange.Max
	transports := webrtcadapter.NewFactory(factoryCfg, zlog)

	engine := capture.NewEngine(cfg.Media.VideoCodec, cfg.Media.AudioCodec, zlog)
	renderer := display.NewRenderer(0, zlog)

	sessions := services.NewSessionService(
		engine, transports, dialer, renderer, collector, sessionDefaults(cfg), zlog)

	cache := buildStreamCache(cfg, sugar)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Enabled:           cfg.ControlAPI.RateLimiting.Enabled,
		RequestsPerSecond: cfg.ControlAPI.RateLimiting.RequestsPerSecond,
		Burst:             cfg.ControlAPI.RateLimiting.Burst,
		MaxConcurrent:     cfg.ControlAPI.RateLimiting.MaxConcurrent,
	}))
	handlers.NewSessionHandler(sessions, cache, zlog).SetupRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	server := &http.Server{
		Addr:         cfg.ControlAPI.Address,
		Handler:      router,
		ReadTimeout:  cfg.ControlAPI.ReadTimeout,
		WriteTimeout: cfg.ControlAPI.WriteTimeout,
	}

	go func() {
		sugar.Infow("control api listening", "address", cfg.ControlAPI.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("control api failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down")

	sessions.StopLocalPreview()
	renderer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ControlAPI.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		sugar.Warnw("control api shutdown failed", "error", err)
	}
}

func sessionDefaults(cfg *config.Config) domain.SessionOptions {
	iceServers := make([]domain.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, domain.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return domain.SessionOptions{
		SignalURL:       cfg.Signal.URL,
		ApplicationName: cfg.Signal.ApplicationName,
		StreamName:      cfg.Signal.StreamName,
		Constraints: domain.MediaConstraints{
			Audio: cfg.Media.Audio,
			Video: cfg.Media.Video,
		},
		VideoOptions: domain.VideoOptions{
			Bitrate:   cfg.Media.VideoBitrate,
			CodecName: cfg.Media.VideoCodec,
			FrameRate: cfg.Media.VideoFrameRate,
		},
		AudioOptions: domain.AudioOptions{
			CodecName: cfg.Media.AudioCodec,
			Bitrate:   cfg.Media.AudioBitrate,
		},
		ICEServers: iceServers,
	}
}

func buildStreamCache(cfg *config.Config, sugar *zap.SugaredLogger) ports.StreamCache {
	if !cfg.Redis.Enabled {
		return memrepo.NewStreamCache(cfg.Redis.StreamListTTL)
	}

	client, err := redisrepo.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
	if err != nil {
		sugar.Warnw("redis unavailable, using in-memory stream cache", "error", err)
		return memrepo.NewStreamCache(cfg.Redis.StreamListTTL)
	}
	sugar.Infow("redis stream cache enabled", "address", cfg.Redis.Address)
	return redisrepo.NewStreamCache(client, cfg.Redis.StreamListTTL, sugar.Desugar())
}
