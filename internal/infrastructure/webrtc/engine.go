package webrtc

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/pkg/logger"
)

// DecoderFactory builds a decoder for one inbound track.
type DecoderFactory func() (ports.FrameDecoder, error)

// EncoderFactory builds an encoder for frames of the given size.
type EncoderFactory func(width, height int) (ports.FrameEncoder, error)

// Config configures the pion media engine.
type Config struct {
	ICEServers []webrtc.ICEServer
	PortMin    uint16
	PortMax    uint16
	// PLIInterval is the period of unsolicited key frame requests. Zero
	// requests one on track start and then only when decoding loses sync.
	PLIInterval time.Duration
	FrameRate   float32
	NewDecoder  DecoderFactory
	NewEncoder  EncoderFactory
}

// Engine negotiates one peer connection per session. Every connection
// receives a VP8 video track and sends one processed VP8 track back.
type Engine struct {
	cfg    Config
	api    *webrtc.API
	logger *zap.SugaredLogger
}

var videoFeedback = []webrtc.RTCPFeedback{
	{Type: "goog-remb"},
	{Type: "ccm", Parameter: "fir"},
	{Type: "nack"},
	{Type: "nack", Parameter: "pli"},
}

// NewEngine registers VP8 and Opus only, so browsers always negotiate a
// video codec the decoder understands.
func NewEngine(cfg Config, log *zap.Logger) (*Engine, error) {
	if cfg.NewDecoder == nil || cfg.NewEncoder == nil {
		return nil, fmt.Errorf("webrtc engine: decoder and encoder factories are required")
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     webrtc.MimeTypeVP8,
			ClockRate:    90000,
			RTCPFeedback: videoFeedback,
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register vp8: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	settings := webrtc.SettingEngine{LoggerFactory: logger.NewPionFactory(log)}
	if cfg.PortMin > 0 && cfg.PortMax > 0 {
		if err := settings.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
			return nil, fmt.Errorf("set udp port range: %w", err)
		}
	}

	return &Engine{
		cfg: cfg,
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithInterceptorRegistry(registry),
			webrtc.WithSettingEngine(settings),
		),
		logger: log.Sugar().Named("webrtc"),
	}, nil
}

// Negotiate answers a client offer. The answer is returned only after ICE
// gathering completes, so it carries every local candidate.
func (e *Engine) Negotiate(ctx context.Context, offer domain.SessionDescription, onState func(domain.TransportState)) (ports.PeerLink, domain.SessionDescription, error) {
	if err := checkOffer(offer.SDP); err != nil {
		return nil, domain.SessionDescription{}, err
	}

	pc, err := e.api.NewPeerConnection(webrtc.Configuration{ICEServers: e.cfg.ICEServers})
	if err != nil {
		return nil, domain.SessionDescription{}, fmt.Errorf("create peer connection: %w", err)
	}

	out, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video",
		"lensrelay",
	)
	if err != nil {
		_ = pc.Close()
		return nil, domain.SessionDescription{}, fmt.Errorf("create outbound track: %w", err)
	}
	sender, err := pc.AddTrack(out)
	if err != nil {
		_ = pc.Close()
		return nil, domain.SessionDescription{}, fmt.Errorf("add outbound track: %w", err)
	}

	l := newLink(pc, out, e.cfg, e.logger)
	go l.drainRTCP(sender)

	pc.OnTrack(l.handleTrack)
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		e.logger.Debugw("ICE connection state changed", "ice_state", state.String())
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.logger.Infow("Peer connection state changed", "state", state.String())
		if onState != nil {
			onState(transportState(state))
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		_ = l.Close()
		return nil, domain.SessionDescription{}, fmt.Errorf("%w: %v", domain.ErrInvalidOffer, err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = l.Close()
		return nil, domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = l.Close()
		return nil, domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		_ = l.Close()
		return nil, domain.SessionDescription{}, fmt.Errorf("ice gathering: %w", ctx.Err())
	}

	local := pc.LocalDescription()
	if local == nil {
		_ = l.Close()
		return nil, domain.SessionDescription{}, fmt.Errorf("no local description after gathering")
	}
	return l, domain.SessionDescription{Type: local.Type.String(), SDP: local.SDP}, nil
}

// checkOffer parses the offer and requires at least one video section.
func checkOffer(raw string) error {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOffer, err)
	}
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media == "video" {
			return nil
		}
	}
	return domain.ErrNoVideoTrack
}

func transportState(s webrtc.PeerConnectionState) domain.TransportState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return domain.TransportChecking
	case webrtc.PeerConnectionStateConnected:
		return domain.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.TransportFailed
	case webrtc.PeerConnectionStateClosed:
		return domain.TransportClosed
	default:
		return domain.TransportNew
	}
}
