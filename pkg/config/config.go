package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

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
		KeyframeInterval time.Duration `yaml:"keyframe_interval"`
		PLIInterval      time.Duration `yaml:"pli_interval"`
		EncoderBitrate   int           `yaml:"encoder_bitrate"`
		FrameRate        float32       `yaml:"frame_rate"`
	} `yaml:"webrtc"`

	Sessions struct {
		MaxSessions  int           `yaml:"max_sessions"`
		CloseTimeout time.Duration `yaml:"close_timeout"`
	} `yaml:"sessions"`

	Pipeline struct {
		DefaultTransform string `yaml:"default_transform"`
		BlurKernel       int    `yaml:"blur_kernel"`
		EdgeLow          int    `yaml:"edge_low"`
		EdgeHigh         int    `yaml:"edge_high"`
	} `yaml:"pipeline"`

	Inference struct {
		URL           string        `yaml:"url"`
		Timeout       time.Duration `yaml:"timeout"`
		Required      bool          `yaml:"required"`
		Confidence    float64       `yaml:"confidence"`
		IoU           float64       `yaml:"iou"`
		MaxDetections int           `yaml:"max_detections"`
		JPEGQuality   int           `yaml:"jpeg_quality"`
		Breaker       struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			OpenTimeout      time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
		Startup struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
		} `yaml:"startup"`
	} `yaml:"inference"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// WebRTC
	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}
	if c.WebRTC.KeyframeInterval <= 0 {
		return fmt.Errorf("webrtc.keyframe_interval must be > 0")
	}
	if c.WebRTC.PLIInterval < 0 {
		return fmt.Errorf("webrtc.pli_interval must be >= 0")
	}
	if c.WebRTC.EncoderBitrate <= 0 {
		return fmt.Errorf("webrtc.encoder_bitrate must be > 0")
	}
	if c.WebRTC.FrameRate <= 0 {
		return fmt.Errorf("webrtc.frame_rate must be > 0")
	}

	// Sessions
	if c.Sessions.MaxSessions < 0 {
		return fmt.Errorf("sessions.max_sessions must be >= 0")
	}
	if c.Sessions.CloseTimeout <= 0 {
		return fmt.Errorf("sessions.close_timeout must be > 0")
	}

	// Pipeline
	if c.Pipeline.BlurKernel <= 0 || c.Pipeline.BlurKernel%2 == 0 {
		return fmt.Errorf("pipeline.blur_kernel must be a positive odd number")
	}
	if c.Pipeline.EdgeLow < 0 || c.Pipeline.EdgeHigh <= c.Pipeline.EdgeLow {
		return fmt.Errorf("pipeline.edge_low must be >= 0 and < edge_high")
	}

	// Inference
	if c.Inference.URL == "" {
		return fmt.Errorf("inference.url must not be empty")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout must be > 0")
	}
	if c.Inference.Confidence < 0 || c.Inference.Confidence > 1 {
		return fmt.Errorf("inference.confidence must be within [0,1]")
	}
	if c.Inference.IoU < 0 || c.Inference.IoU > 1 {
		return fmt.Errorf("inference.iou must be within [0,1]")
	}
	if c.Inference.MaxDetections <= 0 {
		return fmt.Errorf("inference.max_detections must be > 0")
	}
	if c.Inference.JPEGQuality < 1 || c.Inference.JPEGQuality > 100 {
		return fmt.Errorf("inference.jpeg_quality must be within [1,100]")
	}
	if c.Inference.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("inference.breaker.failure_threshold must be > 0")
	}
	if c.Inference.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("inference.breaker.success_threshold must be > 0")
	}
	if c.Inference.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("inference.breaker.open_timeout must be > 0")
	}
	if c.Inference.Startup.MaxAttempts < 0 {
		return fmt.Errorf("inference.startup.max_attempts must be >= 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.Channel == "" {
			return fmt.Errorf("redis.channel must not be empty when redis.enabled=true")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0,1]")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, cfg.Validate()
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

	cfg.Server.Address = ":8081"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.WebRTC.KeyframeInterval = 2 * time.Second
	cfg.WebRTC.EncoderBitrate = 1_500_000
	cfg.WebRTC.FrameRate = 30

	cfg.Sessions.MaxSessions = 0 // unlimited
	cfg.Sessions.CloseTimeout = 5 * time.Second

	cfg.Pipeline.DefaultTransform = "grayscale"
	cfg.Pipeline.BlurKernel = 15
	cfg.Pipeline.EdgeLow = 100
	cfg.Pipeline.EdgeHigh = 200

	cfg.Inference.URL = "http://localhost:8500"
	cfg.Inference.Timeout = 500 * time.Millisecond
	cfg.Inference.Required = false
	cfg.Inference.Confidence = 0.3
	cfg.Inference.IoU = 0.3
	cfg.Inference.MaxDetections = 20
	cfg.Inference.JPEGQuality = 85
	cfg.Inference.Breaker.FailureThreshold = 5
	cfg.Inference.Breaker.SuccessThreshold = 2
	cfg.Inference.Breaker.OpenTimeout = 10 * time.Second
	cfg.Inference.Startup.MaxAttempts = 5
	cfg.Inference.Startup.InitialDelay = 500 * time.Millisecond
	cfg.Inference.Startup.MaxDelay = 5 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.Channel = "lensrelay:sessions"

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 5
	cfg.RateLimiting.Burst = 10

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LENSRELAY_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("LENSRELAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if url := os.Getenv("LENSRELAY_INFERENCE_URL"); url != "" {
		c.Inference.URL = url
	}
	if transform := os.Getenv("LENSRELAY_DEFAULT_TRANSFORM"); transform != "" {
		c.Pipeline.DefaultTransform = transform
	}
	if max := os.Getenv("LENSRELAY_MAX_SESSIONS"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			c.Sessions.MaxSessions = n
		}
	}
}
