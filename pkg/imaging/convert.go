package imaging

import (
	"image"
	"image/color"

	"lensrelay/internal/core/domain"
)

// ToYCbCr420 converts a BGR24 buffer to planar 4:2:0. Odd widths and
// heights are rounded up by the chroma planes.
func ToYCbCr420(src *domain.Image) *image.YCbCr {
	out := image.NewYCbCr(src.Bounds(), image.YCbCrSubsampleRatio420)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			b, g, r := src.BGR(x, y)
			yy, cb, cr := color.RGBToYCbCr(r, g, b)
			out.Y[out.YOffset(x, y)] = yy
			if x%2 == 0 && y%2 == 0 {
				ci := out.COffset(x, y)
				out.Cb[ci], out.Cr[ci] = cb, cr
			}
		}
	}
	return out
}
