package imaging

import (
	"math"

	"lensrelay/internal/core/domain"
	"lensrelay/pkg/optimize"
)

var planes optimize.Float32Pool

// GaussianKernel returns a normalised 1-D kernel. A non-positive sigma is
// derived from size as 0.3*((size-1)*0.5-1)+0.8.
func GaussianKernel(size int, sigma float64) []float32 {
	if size < 1 {
		size = 1
	}
	if sigma <= 0 {
		sigma = 0.3*((float64(size)-1)*0.5-1) + 0.8
	}
	r := size / 2
	k := make([]float32, size)
	var sum float64
	for i := range k {
		d := float64(i - r)
		v := math.Exp(-(d * d) / (2 * sigma * sigma))
		k[i] = float32(v)
		sum += v
	}
	for i := range k {
		k[i] = float32(float64(k[i]) / sum)
	}
	return k
}

// GaussianBlur applies a separable ksize x ksize Gaussian with replicated
// borders. Even sizes are rounded up; sizes below 3 return a copy.
func GaussianBlur(src *domain.Image, ksize int) *domain.Image {
	if ksize < 3 {
		return src.Clone()
	}
	if ksize%2 == 0 {
		ksize++
	}
	kernel := GaussianKernel(ksize, 0)
	r := ksize / 2
	w, h := src.Width, src.Height

	tmp := planes.Get(w * h * 3)
	defer planes.Put(tmp)

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			var s0, s1, s2 float32
			for i, kv := range kernel {
				p := row[clamp(x+i-r, w)*3:]
				s0 += kv * float32(p[0])
				s1 += kv * float32(p[1])
				s2 += kv * float32(p[2])
			}
			o := (y*w + x) * 3
			tmp[o], tmp[o+1], tmp[o+2] = s0, s1, s2
		}
	}

	out := domain.NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s0, s1, s2 float32
			for i, kv := range kernel {
				o := (clamp(y+i-r, h)*w + x) * 3
				s0 += kv * tmp[o]
				s1 += kv * tmp[o+1]
				s2 += kv * tmp[o+2]
			}
			out.SetBGR(x, y, toByte(s0), toByte(s1), toByte(s2))
		}
	}
	return out
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func toByte(v float32) uint8 {
	v += 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
