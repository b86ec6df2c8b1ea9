package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Signal struct {
		URL              string        `yaml:"url"`
		ApplicationName  string        `yaml:"application_name"`
		StreamName       string        `yaml:"stream_name"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		TokenSecret      string        `yaml:"token_secret"`
		TokenTTL         time.Duration `yaml:"token_ttl"`
	} `yaml:"signal"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		PortRange struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
	} `yaml:"webrtc"`

	Media struct {
		Audio          bool    `yaml:"audio"`
		Video          bool    `yaml:"video"`
		VideoCodec     string  `yaml:"video_codec"`
		VideoBitrate   int     `yaml:"video_bitrate"`
		VideoFrameRate float64 `yaml:"video_frame_rate"`
		AudioCodec     string  `yaml:"audio_codec"`
		AudioBitrate   int     `yaml:"audio_bitrate"`
	} `yaml:"media"`

	ControlAPI struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

		RateLimiting struct {
			Enabled           bool    `yaml:"enabled"`
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"rate_limiting"`
	} `yaml:"control_api"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Redis struct {
		Enabled       bool          `yaml:"enabled"`
		Address       string        `yaml:"address"`
		Password      string        `yaml:"password"`
		DB            int           `yaml:"db"`
		PoolSize      int           `yaml:"pool_size"`
		StreamListTTL time.Duration `yaml:"stream_list_ttl"`
	} `yaml:"redis"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads the yaml config at configPath, falling back to defaults when the
// file does not exist.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Signal.URL = "wss://localhost:8443/webrtc-session.json"
	cfg.Signal.ApplicationName = "live"
	cfg.Signal.HandshakeTimeout = 10 * time.Second
	cfg.Signal.ReadTimeout = 15 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.TokenTTL = 5 * time.Minute

	cfg.Media.Audio = true
	cfg.Media.Video = true
	cfg.Media.VideoCodec = "h264"
	cfg.Media.AudioCodec = "opus"

	cfg.ControlAPI.Address = ":8090"
	cfg.ControlAPI.ReadTimeout = 30 * time.Second
	cfg.ControlAPI.WriteTimeout = 30 * time.Second
	cfg.ControlAPI.ShutdownTimeout = 15 * time.Second

	cfg.Tracing.ServiceName = "webcaster"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Redis.StreamListTTL = 10 * time.Second

	cfg.Logging.Level = "info"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("WEBCASTER_SIGNAL_URL"); url != "" {
		c.Signal.URL = url
	}
	if app := os.Getenv("WEBCASTER_APPLICATION_NAME"); app != "" {
		c.Signal.ApplicationName = app
	}
	if stream := os.Getenv("WEBCASTER_STREAM_NAME"); stream != "" {
		c.Signal.StreamName = stream
	}
	if secret := os.Getenv("WEBCASTER_TOKEN_SECRET"); secret != "" {
		c.Signal.TokenSecret = secret
	}
	if level := os.Getenv("WEBCASTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Signal.URL == "" {
		return fmt.Errorf("signal.url must not be empty")
	}
	if c.Signal.ApplicationName == "" {
		return fmt.Errorf("signal.application_name must not be empty")
	}
	if c.Signal.HandshakeTimeout <= 0 {
		return fmt.Errorf("signal.handshake_timeout must be > 0")
	}
	if c.Signal.ReadTimeout <= 0 {
		return fmt.Errorf("signal.read_timeout must be > 0")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}

	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}

	if !c.Media.Audio && !c.Media.Video {
		return fmt.Errorf("media must enable audio, video, or both")
	}
	if c.Media.VideoBitrate < 0 {
		return fmt.Errorf("media.video_bitrate must be >= 0")
	}
	if c.Media.AudioBitrate < 0 {
		return fmt.Errorf("media.audio_bitrate must be >= 0")
	}
	if c.Media.VideoFrameRate < 0 {
		return fmt.Errorf("media.video_frame_rate must be >= 0")
	}

	if c.ControlAPI.Address == "" {
		return fmt.Errorf("control_api.address must not be empty")
	}
	if c.ControlAPI.ShutdownTimeout <= 0 {
		return fmt.Errorf("control_api.shutdown_timeout must be > 0")
	}
	if c.ControlAPI.RateLimiting.Enabled {
		if c.ControlAPI.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("control_api.rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.ControlAPI.RateLimiting.Burst <= 0 {
			return fmt.Errorf("control_api.rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
		if c.ControlAPI.RateLimiting.MaxConcurrent < 0 {
			return fmt.Errorf("control_api.rate_limiting.max_concurrent must be >= 0")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in (0, 1]")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.StreamListTTL <= 0 {
			return fmt.Errorf("redis.stream_list_ttl must be > 0 when redis.enabled=true")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}
