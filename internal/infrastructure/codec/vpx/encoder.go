// Package vpx decodes inbound and encodes outbound VP8 with libvpx. It
// needs cgo and the libvpx development headers.
package vpx

import (
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"
	"lensrelay/pkg/imaging"
)

// Config holds encoder settings shared by every outbound track.
type Config struct {
	BitRate          int
	FrameRate        float32
	KeyFrameInterval time.Duration
}

// Encoder wraps one libvpx VP8 context sized for a fixed geometry.
type Encoder struct {
	width  int
	height int

	mu   sync.Mutex
	next image.Image
	enc  codec.ReadCloser
}

// NewFactory returns a constructor for encoders of a given size.
func NewFactory(cfg Config) func(width, height int) (ports.FrameEncoder, error) {
	return func(width, height int) (ports.FrameEncoder, error) {
		return NewEncoder(cfg, width, height)
	}
}

func NewEncoder(cfg Config, width, height int) (*Encoder, error) {
	params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	params.BitRate = cfg.BitRate
	if cfg.FrameRate > 0 && cfg.KeyFrameInterval > 0 {
		params.KeyFrameInterval = int(cfg.KeyFrameInterval.Seconds() * float64(cfg.FrameRate))
	}

	e := &Encoder{width: width, height: height}
	enc, err := params.BuildVideoEncoder(video.ReaderFunc(e.read), prop.Media{
		Video: prop.Video{
			Width:       width,
			Height:      height,
			FrameRate:   cfg.FrameRate,
			FrameFormat: frame.FormatI420,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build vp8 encoder %dx%d: %w", width, height, err)
	}
	e.enc = enc
	return e, nil
}

// read feeds the pending frame to libvpx. It runs under e.mu via Encode.
func (e *Encoder) read() (image.Image, func(), error) {
	img := e.next
	e.next = nil
	if img == nil {
		return nil, func() {}, io.EOF
	}
	return img, func() {}, nil
}

// Encode compresses img into one VP8 frame. An empty result means the
// encoder dropped the frame.
func (e *Encoder) Encode(img *domain.Image) ([]byte, error) {
	if img.Width != e.width || img.Height != e.height {
		return nil, fmt.Errorf("encode vp8: frame %dx%d does not match encoder %dx%d",
			img.Width, img.Height, e.width, e.height)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enc == nil {
		return nil, domain.ErrSessionClosed
	}

	e.next = imaging.ToYCbCr420(img)
	data, release, err := e.enc.Read()
	if err != nil {
		return nil, fmt.Errorf("encode vp8: %w", err)
	}
	out := append([]byte(nil), data...)
	if release != nil {
		release()
	}
	return out, nil
}

func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enc == nil {
		return nil
	}
	err := e.enc.Close()
	e.enc = nil
	return err
}
