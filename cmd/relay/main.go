package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/internal/core/services"
	httphandlers "lensrelay/internal/handlers/http"
	"lensrelay/internal/infrastructure/codec/vpx"
	"lensrelay/internal/infrastructure/events"
	"lensrelay/internal/infrastructure/inference"
	"lensrelay/internal/infrastructure/monitoring"
	webrtcinfra "lensrelay/internal/infrastructure/webrtc"
	"lensrelay/pkg/circuitbreaker"
	"lensrelay/pkg/config"
	"lensrelay/pkg/logger"
	"lensrelay/pkg/retry"
	"lensrelay/pkg/tracing"
	"lensrelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	startTime := time.Now()

	configFlag := flag.String("config", "", "path to config file")
	flag.Parse()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/lensrelay/config.yaml",
		"config.yaml",
	}
	if *configFlag != "" {
		configPaths = []string{*configFlag}
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		// An explicit path that fails to load is fatal; otherwise run on defaults.
		if *configFlag != "" {
			logger.New("info").Sugar().Fatalw("Failed to load config", "path", *configFlag, "error", err)
		}
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "lensrelay",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("Failed to initialize tracing", "error", err)
	}

	// Initialize monitoring
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewPrometheusCollector(registry)
	health := monitoring.NewHealthChecker()

	// Lifecycle events: local websocket feed plus the optional redis bus
	hub := events.NewHub(log.Named("events"))
	publishers := events.Fanout{hub}

	var bus *events.RedisBus
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		bus = events.NewRedisBus(client, utils.InstanceID(), cfg.Redis.Channel, log.Named("bus"))
		publishers = append(publishers, bus)
		health.AddRedisCheck(client, 2*time.Second)

		go func() {
			err := bus.Subscribe(ctx, func(event domain.LifecycleEvent) {
				_ = hub.Publish(ctx, event)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warnw("Event bus subscription ended", "error", err)
			}
		}()
		log.Infow("Redis event bus enabled",
			"address", cfg.Redis.Address,
			"channel", cfg.Redis.Channel,
			"password", utils.MaskSensitive(cfg.Redis.Password, 0),
		)
	}

	// Inference client
	detector, err := inference.NewClient(inference.Config{
		URL:         cfg.Inference.URL,
		Timeout:     cfg.Inference.Timeout,
		JPEGQuality: cfg.Inference.JPEGQuality,
		Breaker: circuitbreaker.Config{
			FailureThreshold:    cfg.Inference.Breaker.FailureThreshold,
			SuccessThreshold:    cfg.Inference.Breaker.SuccessThreshold,
			Timeout:             cfg.Inference.Breaker.OpenTimeout,
			MaxRequestsHalfOpen: 1,
		},
	}, log.Named("inference"))
	if err != nil {
		log.Fatalw("Failed to create inference client", "error", err)
	}
	health.AddInferenceCheck(detector, cfg.Inference.Timeout)

	probe := retry.Config{
		MaxAttempts:  cfg.Inference.Startup.MaxAttempts,
		InitialDelay: cfg.Inference.Startup.InitialDelay,
		MaxDelay:     cfg.Inference.Startup.MaxDelay,
		Multiplier:   2.0,
		Jitter:       true,
	}
	if cfg.Inference.Required {
		if err := detector.Probe(ctx, probe); err != nil {
			log.Fatalw("Inference server unavailable", "url", cfg.Inference.URL, "error", err)
		}
		log.Infow("Inference server ready", "url", cfg.Inference.URL, "classes", len(detector.ClassNames()))
	} else {
		go func() {
			if err := detector.Probe(ctx, probe); err != nil && ctx.Err() == nil {
				log.Warnw("Inference server unreachable, detection overlays will be empty", "url", cfg.Inference.URL, "error", err)
			}
		}()
	}

	// WebRTC configuration (including STUN/TURN from config)
	var iceServers []webrtc.ICEServer
	if len(cfg.WebRTC.ICEServers) > 0 {
		for _, s := range cfg.WebRTC.ICEServers {
			iceServers = append(iceServers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
	} else {
		// Fallback STUN server if not configured
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	newDecoder, pliInterval := inboundDecoder(cfg)
	engine, err := webrtcinfra.NewEngine(webrtcinfra.Config{
		ICEServers:  iceServers,
		PortMin:     cfg.WebRTC.PortRange.Min,
		PortMax:     cfg.WebRTC.PortRange.Max,
		PLIInterval: pliInterval,
		FrameRate:   cfg.WebRTC.FrameRate,
		NewDecoder:  newDecoder,
		NewEncoder: vpx.NewFactory(vpx.Config{
			BitRate:          cfg.WebRTC.EncoderBitrate,
			FrameRate:        cfg.WebRTC.FrameRate,
			KeyFrameInterval: cfg.WebRTC.KeyframeInterval,
		}),
	}, zapLogger)
	if err != nil {
		log.Fatalw("Failed to create media engine", "error", err)
	}

	// Sessions and signaling
	defaultTransform, ok := domain.ParseTransformKind(cfg.Pipeline.DefaultTransform)
	if !ok {
		log.Fatalw("Unknown default transform", "transform", cfg.Pipeline.DefaultTransform)
	}
	sessions := services.NewSessionRegistry()
	health.AddSessionCapacityCheck(sessions.Len, cfg.Sessions.MaxSessions)

	signaling := services.NewSignalingService(engine, sessions, publishers, metrics, log.Named("signaling"),
		services.SignalingConfig{
			DefaultTransform: defaultTransform,
			MaxSessions:      cfg.Sessions.MaxSessions,
			Stages: services.StageConfig{
				BlurKernel: cfg.Pipeline.BlurKernel,
				EdgeLow:    float64(cfg.Pipeline.EdgeLow),
				EdgeHigh:   float64(cfg.Pipeline.EdgeHigh),
				Detector:   detector,
				Detect: ports.DetectOptions{
					Confidence:    cfg.Inference.Confidence,
					IoU:           cfg.Inference.IoU,
					MaxDetections: cfg.Inference.MaxDetections,
				},
			},
		})

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	var metricsHandler http.Handler
	if cfg.Monitoring.PrometheusEnabled {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		log.Info("Prometheus metrics enabled")
	}
	router := httphandlers.NewRouter(httphandlers.RouterDeps{
		Config:    cfg,
		Logger:    zapLogger,
		Signaling: signaling,
		Sessions:  sessions,
		Health:    health,
		Events:    hub,
		Metrics:   metricsHandler,
		StartTime: startTime,
	})

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting lensrelay",
			"address", cfg.Server.Address,
			"default_transform", defaultTransform.String(),
			"max_sessions", cfg.Sessions.MaxSessions,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig.String())
	}

	log.Info("Shutting down lensrelay...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting offers first, then close live sessions
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	active := sessions.Len()
	if err := sessions.DrainAll(shutdownCtx); err != nil {
		log.Errorw("Sessions did not close in time", "remaining", sessions.Len(), "error", err)
	} else {
		log.Infow("Sessions closed", "count", active)
	}

	cancel()
	if err := hub.Close(); err != nil {
		log.Warnw("Error closing event hub", "error", err)
	}
	if bus != nil {
		if err := bus.Close(); err != nil {
			log.Warnw("Error closing event bus", "error", err)
		}
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Error shutting down tracer", "error", err)
	}

	log.Info("lensrelay stopped")
}
