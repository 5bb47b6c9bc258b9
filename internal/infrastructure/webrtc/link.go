package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/samplebuilder"
	"go.uber.org/zap"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/pkg/optimize"
)

const (
	rtpBufferSize = 1500
	// maxLatePackets bounds how long the sample builder waits for a gap.
	maxLatePackets = 128
	// pliMinGap spaces key frame requests caused by undecodable frames.
	pliMinGap = 500 * time.Millisecond
)

var rtpBuffers = optimize.NewBytePool(rtpBufferSize)

// link is one negotiated peer connection. The read side feeds a
// latest-wins mailbox; WriteFrame encodes on the caller's goroutine.
type link struct {
	pc     *webrtc.PeerConnection
	out    *webrtc.TrackLocalStaticSample
	cfg    Config
	logger *zap.SugaredLogger

	mailbox  *mailbox
	hasVideo atomic.Bool
	dropped  atomic.Uint64
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	enc      ports.FrameEncoder
	encW     int
	encH     int
	lastPTS  int64
	hasPTS   bool
	interval time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newLink(pc *webrtc.PeerConnection, out *webrtc.TrackLocalStaticSample, cfg Config, log *zap.SugaredLogger) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		pc:       pc,
		out:      out,
		cfg:      cfg,
		logger:   log,
		mailbox:  newMailbox(),
		ctx:      ctx,
		cancel:   cancel,
		interval: time.Duration(float64(time.Second) / float64(cfg.FrameRate)),
	}
}

func (l *link) Frames() <-chan domain.Frame {
	return l.mailbox.frames()
}

// handleTrack consumes the first video track. Audio and extra video tracks
// are read and discarded so their buffers keep moving.
func (l *link) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	l.logger.Infow("Remote track started",
		"track_id", track.ID(),
		"kind", track.Kind().String(),
		"codec", track.Codec().MimeType,
	)

	if track.Kind() != webrtc.RTPCodecTypeVideo || !l.hasVideo.CompareAndSwap(false, true) {
		go l.discard(track)
		return
	}

	kf := newKeyframeRequester(uint32(track.SSRC()), pliMinGap, l.pc.WriteRTCP, func(err error) {
		l.logger.Debugw("Sending key frame request", "error", err)
	})
	go kf.run(l.cfg.PLIInterval, l.ctx.Done())
	go l.readVideo(track, kf)
}

func (l *link) readVideo(track *webrtc.TrackRemote, kf *keyframeRequester) {
	defer l.mailbox.close()

	buf := rtpBuffers.Get()
	defer rtpBuffers.Put(buf)

	decoder, err := l.cfg.NewDecoder()
	if err != nil {
		l.logger.Errorw("Creating VP8 decoder", "track_id", track.ID(), "error", err)
		return
	}
	if c, ok := decoder.(io.Closer); ok {
		defer c.Close()
	}
	in := &inbound{
		decoder:  decoder,
		kf:       kf,
		clock:    &rtpClock{},
		timeBase: domain.Rational{Num: 1, Den: int(track.Codec().ClockRate)},
	}
	builder := samplebuilder.New(maxLatePackets, &codecs.VP8Packet{}, track.Codec().ClockRate)

	for {
		n, _, err := track.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && l.ctx.Err() == nil {
				l.logger.Warnw("Error reading track", "track_id", track.ID(), "error", err)
			}
			return
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			l.logger.Debugw("Error unmarshaling RTP packet", "track_id", track.ID(), "error", err)
			continue
		}
		// The sample builder keeps packets; the payload must not alias buf.
		pkt.Payload = append([]byte(nil), pkt.Payload...)
		builder.Push(pkt)

		for s := builder.Pop(); s != nil; s = builder.Pop() {
			l.handleSample(in, s)
			if in.samples%300 == 0 {
				l.logger.Debugw("Inbound video progress",
					"track_id", track.ID(),
					"samples", in.samples,
					"decoded", in.decoded,
					"dropped_frames", l.dropped.Load(),
				)
			}
		}
	}
}

// inbound is the decode state of the one video track a link consumes.
type inbound struct {
	decoder  ports.FrameDecoder
	kf       *keyframeRequester
	clock    *rtpClock
	timeBase domain.Rational
	samples  uint64
	decoded  uint64
}

// handleSample decodes one assembled sample into the mailbox. Samples the
// decoder cannot use trigger a rate-limited key frame request.
func (l *link) handleSample(in *inbound, s *media.Sample) {
	in.samples++
	img, err := in.decoder.Decode(s.Data)
	if err != nil {
		if errors.Is(err, domain.ErrNeedKeyFrame) || !isVP8KeyFrame(s.Data) {
			in.kf.Request()
		} else {
			l.logger.Debugw("Decoding VP8 sample", "error", err)
		}
		return
	}
	in.decoded++
	frame := domain.Frame{Image: img, PTS: in.clock.unwrap(s.PacketTimestamp), TimeBase: in.timeBase}
	if l.mailbox.put(frame) {
		l.dropped.Add(1)
	}
}

func (l *link) discard(track *webrtc.TrackRemote) {
	buf := rtpBuffers.Get()
	defer rtpBuffers.Put(buf)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

// drainRTCP reads feedback for the outbound track so interceptors run.
func (l *link) drainRTCP(sender *webrtc.RTPSender) {
	buf := rtpBuffers.Get()
	defer rtpBuffers.Put(buf)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// WriteFrame encodes frame and writes it to the outbound track. The
// encoder is rebuilt whenever the frame size changes.
func (l *link) WriteFrame(ctx context.Context, frame domain.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := frame.Image.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return domain.ErrSessionClosed
	}

	if err := l.ensureEncoder(frame.Image.Width, frame.Image.Height); err != nil {
		return err
	}
	data, err := l.enc.Encode(frame.Image)
	if err != nil {
		return err
	}
	dur := l.sampleDuration(frame)
	if len(data) == 0 {
		return nil
	}
	if err := l.out.WriteSample(media.Sample{Data: data, Duration: dur}); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}

func (l *link) ensureEncoder(width, height int) error {
	if l.enc != nil && l.encW == width && l.encH == height {
		return nil
	}
	if l.enc != nil {
		if err := l.enc.Close(); err != nil {
			l.logger.Debugw("Closing encoder", "error", err)
		}
		l.enc = nil
	}
	enc, err := l.cfg.NewEncoder(width, height)
	if err != nil {
		return fmt.Errorf("create encoder %dx%d: %w", width, height, err)
	}
	l.enc, l.encW, l.encH = enc, width, height
	l.logger.Debugw("Encoder configured", "width", width, "height", height)
	return nil
}

// sampleDuration derives the sample's duration from the PTS delta, falling
// back to the nominal frame interval.
func (l *link) sampleDuration(frame domain.Frame) time.Duration {
	dur := l.interval
	if l.hasPTS {
		if d := frame.TimeBase.Duration(frame.PTS - l.lastPTS); d > 0 {
			dur = d
		}
	}
	l.lastPTS, l.hasPTS = frame.PTS, true
	return dur
}

func (l *link) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.closeErr = l.pc.Close()
		l.mailbox.close()

		l.mu.Lock()
		if l.enc != nil {
			if err := l.enc.Close(); err != nil {
				l.logger.Debugw("Closing encoder", "error", err)
			}
			l.enc = nil
		}
		l.mu.Unlock()
	})
	return l.closeErr
}

// rtpClock unwraps 32-bit RTP timestamps into a monotonic 64-bit PTS
// starting at zero.
type rtpClock struct {
	started bool
	last    uint32
	pts     int64
}

func (c *rtpClock) unwrap(ts uint32) int64 {
	if !c.started {
		c.started, c.last = true, ts
		return 0
	}
	c.pts += int64(int32(ts - c.last))
	c.last = ts
	return c.pts
}
