//go:build vp8keyframe

package main

import (
	"time"

	"lensrelay/internal/core/ports"
	"lensrelay/internal/infrastructure/codec/vp8"
	webrtcinfra "lensrelay/internal/infrastructure/webrtc"
	"lensrelay/pkg/config"
)

// inboundDecoder decodes key frames only, so the sender is asked for one
// every keyframe_interval when pli_interval is unset.
func inboundDecoder(cfg *config.Config) (webrtcinfra.DecoderFactory, time.Duration) {
	interval := cfg.WebRTC.PLIInterval
	if interval <= 0 {
		interval = cfg.WebRTC.KeyframeInterval
	}
	return func() (ports.FrameDecoder, error) { return vp8.NewDecoder(), nil }, interval
}
