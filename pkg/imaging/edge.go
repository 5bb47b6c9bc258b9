package imaging

import (
	"math"

	"lensrelay/internal/core/domain"
)

const (
	tan22 = 0.41421356
	tan67 = 2.41421356
)

// Edge runs Canny edge detection over the luma of src: Sobel gradients with
// L1 magnitude, non-maximum suppression and hysteresis between low and high.
// Like OpenCV's Canny it does not smooth first. The result is binary (0 or
// 255) in all three channels.
func Edge(src *domain.Image, low, high float64) *domain.Image {
	w, h := src.Width, src.Height
	n := w * h
	out := domain.NewImage(w, h)
	if w < 3 || h < 3 {
		return out
	}
	if low > high {
		low, high = high, low
	}

	gray := planes.Get(n)
	defer planes.Put(gray)
	lumaPlane(src, gray)

	gx := planes.Get(n)
	defer planes.Put(gx)
	gy := planes.Get(n)
	defer planes.Put(gy)
	mag := planes.Get(n)
	defer planes.Put(mag)

	at := func(x, y int) float32 { return gray[clamp(y, h)*w+clamp(x, w)] }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := (at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)) -
				(at(x-1, y-1) + 2*at(x-1, y) + at(x-1, y+1))
			dy := (at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)) -
				(at(x-1, y-1) + 2*at(x, y-1) + at(x+1, y-1))
			i := y*w + x
			gx[i], gy[i] = dx, dy
			mag[i] = float32(math.Abs(float64(dx)) + math.Abs(float64(dy)))
		}
	}

	const (
		none uint8 = iota
		weak
		strong
	)
	marks := make([]uint8, n)
	stack := make([]int, 0, 64)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if float64(m) <= low {
				continue
			}
			var a, b float32
			ax, ay := math.Abs(float64(gx[i])), math.Abs(float64(gy[i]))
			switch {
			case ay <= ax*tan22:
				a, b = mag[i-1], mag[i+1]
			case ay >= ax*tan67:
				a, b = mag[i-w], mag[i+w]
			case gx[i]*gy[i] > 0:
				a, b = mag[i-w-1], mag[i+w+1]
			default:
				a, b = mag[i-w+1], mag[i+w-1]
			}
			if m <= a || m < b {
				continue
			}
			if float64(m) > high {
				marks[i] = strong
				stack = append(stack, i)
			} else {
				marks[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range [...]int{-w - 1, -w, -w + 1, -1, 1, w - 1, w, w + 1} {
			j := i + d
			if j >= 0 && j < n && marks[j] == weak {
				marks[j] = strong
				stack = append(stack, j)
			}
		}
	}

	for i, m := range marks {
		if m == strong {
			o := (i/w)*out.Stride + (i%w)*3
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = 255, 255, 255
		}
	}
	return out
}
