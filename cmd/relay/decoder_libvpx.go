//go:build !vp8keyframe

package main

import (
	"time"

	"lensrelay/internal/core/ports"
	"lensrelay/internal/infrastructure/codec/vpx"
	webrtcinfra "lensrelay/internal/infrastructure/webrtc"
	"lensrelay/pkg/config"
)

// inboundDecoder decodes every VP8 frame with libvpx. Key frames are only
// requested on track start, on loss of sync and every pli_interval if set.
func inboundDecoder(cfg *config.Config) (webrtcinfra.DecoderFactory, time.Duration) {
	return func() (ports.FrameDecoder, error) { return vpx.NewDecoder() }, cfg.WebRTC.PLIInterval
}
