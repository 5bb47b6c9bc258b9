package vpx

import (
	"fmt"

	xvpx "github.com/xlab/libvpx-go/vpx"

	"lensrelay/internal/core/domain"
)

// Decoder decodes every VP8 frame of one inbound track with libvpx. It is
// not safe for concurrent use.
type Decoder struct {
	ctx *xvpx.CodecCtx
	// synced is false until a key frame decodes, and again after an error,
	// because inter frames cannot be reconstructed without their reference.
	synced bool
}

func NewDecoder() (*Decoder, error) {
	ctx := xvpx.NewCodecCtx()
	if err := xvpx.Error(xvpx.CodecDecInitVer(ctx, xvpx.DecoderIfaceVP8(), nil, 0, xvpx.DecoderABIVersion)); err != nil {
		return nil, fmt.Errorf("init vp8 decoder: %w", err)
	}
	return &Decoder{ctx: ctx}, nil
}

// Decode turns one assembled VP8 frame into an image. Until the stream is in
// sync it returns domain.ErrNeedKeyFrame for inter frames.
func (d *Decoder) Decode(sample []byte) (*domain.Image, error) {
	if d.ctx == nil {
		return nil, domain.ErrSessionClosed
	}
	if len(sample) == 0 {
		return nil, fmt.Errorf("decode vp8: empty sample")
	}
	key := sample[0]&0x01 == 0
	if !d.synced && !key {
		return nil, domain.ErrNeedKeyFrame
	}

	if err := xvpx.Error(xvpx.CodecDecode(d.ctx, string(sample), uint32(len(sample)), nil, 0)); err != nil {
		d.synced = false
		return nil, fmt.Errorf("decode vp8: %w", err)
	}

	var out *domain.Image
	var iter xvpx.CodecIter
	for img := xvpx.CodecGetFrame(d.ctx, &iter); img != nil; img = xvpx.CodecGetFrame(d.ctx, &iter) {
		img.Deref()
		// The planes live in libvpx memory; FromStdImage copies them out.
		out = domain.FromStdImage(img.ImageYCbCr())
	}
	if out == nil {
		return nil, fmt.Errorf("decode vp8: no frame produced")
	}
	d.synced = true
	return out, nil
}

func (d *Decoder) Close() error {
	if d.ctx == nil {
		return nil
	}
	err := xvpx.Error(xvpx.CodecDestroy(d.ctx))
	d.ctx = nil
	return err
}
