package domain

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// PixelFormat identifies the memory layout of an Image.
type PixelFormat int

const (
	// PixelFormatBGR24 is 3 bytes per pixel, interleaved B,G,R. It is the canonical
	// layout every transform stage consumes and produces.
	PixelFormatBGR24 PixelFormat = iota
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGR24:
		return "bgr24"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	return 3
}

// Image is a single frame's pixel buffer. A stage that returns an Image hands over
// ownership; nobody mutates it afterwards.
type Image struct {
	Width  int
	Height int
	Format PixelFormat
	Stride int
	Pix    []byte
}

// NewImage allocates a zeroed BGR24 image.
func NewImage(width, height int) *Image {
	stride := width * PixelFormatBGR24.BytesPerPixel()
	return &Image{
		Width:  width,
		Height: height,
		Format: PixelFormatBGR24,
		Stride: stride,
		Pix:    make([]byte, stride*height),
	}
}

// NewSolidImage allocates an image filled with one colour.
func NewSolidImage(width, height int, b, g, r uint8) *Image {
	img := NewImage(width, height)
	for i := 0; i < len(img.Pix); i += 3 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = b, g, r
	}
	return img
}

// Validate checks the buffer is consistent with its declared geometry.
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: non-positive size %dx%d", ErrInvalidImage, m.Width, m.Height)
	}
	if m.Format != PixelFormatBGR24 {
		return fmt.Errorf("%w: unsupported format %s", ErrInvalidImage, m.Format)
	}
	if m.Stride < m.Width*3 {
		return fmt.Errorf("%w: stride %d too small for width %d", ErrInvalidImage, m.Stride, m.Width)
	}
	if len(m.Pix) < m.Stride*(m.Height-1)+m.Width*3 {
		return fmt.Errorf("%w: buffer holds %d bytes", ErrInvalidImage, len(m.Pix))
	}
	return nil
}

// Bounds returns the image rectangle anchored at the origin.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// SameGeometry reports whether o has the same size and format as m.
func (m *Image) SameGeometry(o *Image) bool {
	return o != nil && m.Width == o.Width && m.Height == o.Height && m.Format == o.Format
}

// Clone returns a deep copy with a tight stride.
func (m *Image) Clone() *Image {
	out := NewImage(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], m.Pix[y*m.Stride:y*m.Stride+m.Width*3])
	}
	return out
}

// PixOffset returns the index of the B byte of pixel (x, y).
func (m *Image) PixOffset(x, y int) int {
	return y*m.Stride + x*3
}

// BGR returns the channels of pixel (x, y).
func (m *Image) BGR(x, y int) (b, g, r uint8) {
	i := m.PixOffset(x, y)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// SetBGR writes pixel (x, y). Out-of-bounds writes are ignored.
func (m *Image) SetBGR(x, y int, b, g, r uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	i := m.PixOffset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = b, g, r
}

// ColorModel, At and Set make *Image usable as a draw.Image, which lets font
// rendering write straight into the buffer.
func (m *Image) ColorModel() color.Model { return color.RGBAModel }

func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	b, g, r := m.BGR(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func (m *Image) Set(x, y int, c color.Color) {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return
	}
	if a != 0xffff {
		ob, og, or := uint32(0), uint32(0), uint32(0)
		if x >= 0 && y >= 0 && x < m.Width && y < m.Height {
			pb, pg, pr := m.BGR(x, y)
			ob, og, or = uint32(pb)*0x101, uint32(pg)*0x101, uint32(pr)*0x101
		}
		inv := 0xffff - a
		r = r + or*inv/0xffff
		g = g + og*inv/0xffff
		b = b + ob*inv/0xffff
	}
	m.SetBGR(x, y, uint8(b>>8), uint8(g>>8), uint8(r>>8))
}

var _ draw.Image = (*Image)(nil)

// FromStdImage converts any image.Image to a BGR24 buffer.
func FromStdImage(src image.Image) *Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *image.YCbCr:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				yi := s.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := s.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bb := color.YCbCrToRGB(s.Y[yi], s.Cb[ci], s.Cr[ci])
				out.SetBGR(x, y, bb, g, r)
			}
		}
	case *image.RGBA:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				p := s.Pix[s.PixOffset(b.Min.X+x, b.Min.Y+y):]
				out.SetBGR(x, y, p[2], p[1], p[0])
			}
		}
	default:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				c := color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				out.SetBGR(x, y, c.B, c.G, c.R)
			}
		}
	}
	return out
}

// ToRGBA converts the buffer to an *image.RGBA for encoders.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(m.Bounds())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			b, g, r := m.BGR(x, y)
			o := out.PixOffset(x, y)
			out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = r, g, b, 0xff
		}
	}
	return out
}
