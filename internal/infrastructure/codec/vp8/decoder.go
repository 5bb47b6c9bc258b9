// Package vp8 decodes inbound VP8 samples into BGR24 images.
//
// golang.org/x/image/vp8 only reconstructs key frames. Inter frames are
// reported as domain.ErrNeedKeyFrame so the transport can ask the sender for
// a fresh key frame. Builds tagged vp8keyframe use it in place of the libvpx
// decoder.
package vp8

import (
	"bytes"
	"fmt"

	xvp8 "golang.org/x/image/vp8"

	"lensrelay/internal/core/domain"
)

// Decoder is not safe for concurrent use; each inbound track owns one.
type Decoder struct {
	dec *xvp8.Decoder
}

func NewDecoder() *Decoder {
	return &Decoder{dec: xvp8.NewDecoder()}
}

// Decode turns one assembled VP8 frame into an image.
func (d *Decoder) Decode(sample []byte) (*domain.Image, error) {
	if len(sample) == 0 {
		return nil, fmt.Errorf("decode vp8: empty sample")
	}
	d.dec.Init(bytes.NewReader(sample), len(sample))

	fh, err := d.dec.DecodeFrameHeader()
	if err != nil {
		return nil, fmt.Errorf("decode vp8 header: %w", err)
	}
	if !fh.KeyFrame {
		return nil, domain.ErrNeedKeyFrame
	}

	img, err := d.dec.DecodeFrame()
	if err != nil {
		return nil, fmt.Errorf("decode vp8 frame: %w", err)
	}
	return domain.FromStdImage(img), nil
}
