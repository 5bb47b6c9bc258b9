package imaging

import "image/color"

// Color is an opaque colour in the buffer's channel order.
type Color struct {
	B, G, R uint8
}

// RGB builds a Color from red, green and blue.
func RGB(r, g, b uint8) Color {
	return Color{B: b, G: g, R: r}
}

// RGBA converts c for use with image/draw sources.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

var (
	White = RGB(255, 255, 255)
	Black = RGB(0, 0, 0)
	Red   = RGB(255, 0, 0)
)

var palette = [...]Color{
	RGB(0xFF, 0x38, 0x38), RGB(0xFF, 0x9D, 0x97), RGB(0xFF, 0x70, 0x1F), RGB(0xFF, 0xB2, 0x1D),
	RGB(0xCF, 0xD2, 0x31), RGB(0x48, 0xF9, 0x0A), RGB(0x92, 0xCC, 0x17), RGB(0x3D, 0xDB, 0x86),
	RGB(0x1A, 0x93, 0x34), RGB(0x00, 0xD4, 0xBB), RGB(0x2C, 0x99, 0xA8), RGB(0x00, 0xC2, 0xFF),
	RGB(0x34, 0x45, 0x93), RGB(0x64, 0x73, 0xFF), RGB(0x00, 0x18, 0xEC), RGB(0x84, 0x38, 0xFF),
	RGB(0x52, 0x00, 0x85), RGB(0xCB, 0x38, 0xFF), RGB(0xFF, 0x95, 0xC8), RGB(0xFF, 0x37, 0xC7),
}

// PaletteSize is the number of distinct palette entries.
const PaletteSize = len(palette)

// PaletteColor returns the palette entry for an index, wrapping around.
func PaletteColor(i int) Color {
	i %= PaletteSize
	if i < 0 {
		i += PaletteSize
	}
	return palette[i]
}
