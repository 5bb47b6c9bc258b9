package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
	if cfg.Pipeline.BlurKernel != 15 {
		t.Fatalf("expected default blur kernel 15, got %d", cfg.Pipeline.BlurKernel)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "server address must not be empty",
			mutate: func(c *Config) { c.Server.Address = "" },
		},
		{
			name:   "shutdown timeout must be > 0",
			mutate: func(c *Config) { c.Server.ShutdownTimeout = 0 },
		},
		{
			name: "port range min must be < max",
			mutate: func(c *Config) {
				c.WebRTC.PortRange.Min = 50000
				c.WebRTC.PortRange.Max = 40000
			},
		},
		{
			name:   "port range needs both bounds",
			mutate: func(c *Config) { c.WebRTC.PortRange.Min = 50000 },
		},
		{
			name:   "pli interval must not be negative",
			mutate: func(c *Config) { c.WebRTC.PLIInterval = -time.Second },
		},
		{
			name:   "blur kernel must be odd",
			mutate: func(c *Config) { c.Pipeline.BlurKernel = 14 },
		},
		{
			name:   "edge thresholds must be ordered",
			mutate: func(c *Config) { c.Pipeline.EdgeHigh = c.Pipeline.EdgeLow },
		},
		{
			name:   "confidence must be within [0,1]",
			mutate: func(c *Config) { c.Inference.Confidence = 1.5 },
		},
		{
			name:   "max detections must be > 0",
			mutate: func(c *Config) { c.Inference.MaxDetections = 0 },
		},
		{
			name: "redis address required when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
		},
		{
			name: "rate limit rps must be > 0 when enabled",
			mutate: func(c *Config) {
				c.RateLimiting.Enabled = true
				c.RateLimiting.RequestsPerSecond = 0
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got error: %v", err)
	}
	if cfg.Server.Address != ":8081" {
		t.Fatalf("expected default address :8081, got %s", cfg.Server.Address)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: ":9000"
pipeline:
  default_transform: edge
inference:
  timeout: 250ms
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("expected :9000, got %s", cfg.Server.Address)
	}
	if cfg.Pipeline.DefaultTransform != "edge" {
		t.Fatalf("expected edge, got %s", cfg.Pipeline.DefaultTransform)
	}
	if cfg.Inference.Timeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", cfg.Inference.Timeout)
	}
	// Untouched values keep their defaults.
	if cfg.Pipeline.BlurKernel != 15 {
		t.Fatalf("expected default blur kernel, got %d", cfg.Pipeline.BlurKernel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LENSRELAY_SERVER_ADDRESS", ":7000")
	t.Setenv("LENSRELAY_MAX_SESSIONS", "12")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Fatalf("expected env address override, got %s", cfg.Server.Address)
	}
	if cfg.Sessions.MaxSessions != 12 {
		t.Fatalf("expected max sessions 12, got %d", cfg.Sessions.MaxSessions)
	}
}
