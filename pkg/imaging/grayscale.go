package imaging

import "lensrelay/internal/core/domain"

// Luma returns the BT.601 luma of one pixel.
func Luma(b, g, r uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// Grayscale returns a copy of src with every pixel replaced by its luma in
// all three channels.
func Grayscale(src *domain.Image) *domain.Image {
	out := domain.NewImage(src.Width, src.Height)
	for y := 0; y < src.Height; y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+src.Width*3]
		o := out.Pix[y*out.Stride:]
		for i := 0; i < len(in); i += 3 {
			l := Luma(in[i], in[i+1], in[i+2])
			o[i], o[i+1], o[i+2] = l, l, l
		}
	}
	return out
}

func lumaPlane(src *domain.Image, dst []float32) {
	w := src.Width
	for y := 0; y < src.Height; y++ {
		in := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			dst[y*w+x] = float32(Luma(in[x*3], in[x*3+1], in[x*3+2]))
		}
	}
}
