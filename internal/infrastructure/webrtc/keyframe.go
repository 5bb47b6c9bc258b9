package webrtc

import (
	"time"

	"github.com/pion/rtcp"
	"golang.org/x/time/rate"
)

// isVP8KeyFrame inspects the frame tag of an assembled VP8 frame.
func isVP8KeyFrame(frame []byte) bool {
	return len(frame) >= 3 && frame[0]&0x01 == 0
}

// keyframeRequester sends picture loss indications for one inbound track.
// Requests triggered by decode misses are rate limited; the periodic ones
// from run are not.
type keyframeRequester struct {
	ssrc    uint32
	write   func([]rtcp.Packet) error
	limiter *rate.Limiter
	onError func(error)
}

func newKeyframeRequester(ssrc uint32, minGap time.Duration, write func([]rtcp.Packet) error, onError func(error)) *keyframeRequester {
	return &keyframeRequester{
		ssrc:    ssrc,
		write:   write,
		limiter: rate.NewLimiter(rate.Every(minGap), 1),
		onError: onError,
	}
}

// Request asks for a key frame unless one was requested recently.
func (k *keyframeRequester) Request() bool {
	if !k.limiter.Allow() {
		return false
	}
	k.send()
	return true
}

func (k *keyframeRequester) send() {
	err := k.write([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: k.ssrc}})
	if err != nil && k.onError != nil {
		k.onError(err)
	}
}

// run requests a key frame immediately and then every interval until done
// is closed. A non-positive interval sends the initial request only.
func (k *keyframeRequester) run(interval time.Duration, done <-chan struct{}) {
	k.send()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			k.send()
		}
	}
}
