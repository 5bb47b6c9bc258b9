package imaging

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"lensrelay/internal/core/domain"
)

var face font.Face = basicfont.Face7x13

const labelPad = 2

// FillRect paints r, clipped to the image.
func FillRect(img *domain.Image, r image.Rectangle, c Color) {
	r = r.Canon().Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetBGR(x, y, c.B, c.G, c.R)
		}
	}
}

// DrawRect outlines r with the given stroke width, drawn inward.
func DrawRect(img *domain.Image, r image.Rectangle, c Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r = r.Canon()
	t := thickness
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c)
	FillRect(img, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c)
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), c)
	FillRect(img, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// DrawText writes text with its baseline starting at pt.
func DrawText(img *domain.Image, pt image.Point, text string, c Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c.RGBA()),
		Face: face,
		Dot:  fixed.P(pt.X, pt.Y),
	}
	d.DrawString(text)
}

// TextSize returns the pixel extent of text in the overlay face.
func TextSize(text string) image.Point {
	m := face.Metrics()
	return image.Pt(font.MeasureString(face, text).Ceil(), (m.Ascent + m.Descent).Ceil())
}

// DrawLabel draws text on a filled background anchored to the top-left of a
// box. The label sits above the box when there is room, inside it otherwise.
func DrawLabel(img *domain.Image, box image.Rectangle, text string, bg, fg Color) {
	size := TextSize(text)
	h := size.Y + 2*labelPad
	top := box.Min.Y - h
	if top < 0 {
		top = box.Min.Y
	}
	bgRect := image.Rect(box.Min.X, top, box.Min.X+size.X+2*labelPad, top+h)
	FillRect(img, bgRect, bg)
	ascent := face.Metrics().Ascent.Ceil()
	DrawText(img, image.Pt(bgRect.Min.X+labelPad, top+labelPad+ascent), text, fg)
}
