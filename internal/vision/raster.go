package vision

import (
	"image"
	"image/color"
)

// HSV is an 8-bit, 3-channel raster holding hue, saturation and value.
//
// Hue is stored as degrees/2 (0-179). As an image.Image it reports each pixel
// with V in the red slot, S in green and H in blue, which is how an HSV
// matrix looks when written out by tools that store pixels in BGR order.
type HSV struct {
	// Pix holds H, S, V triples in row-major order.
	Pix []uint8
	// Stride is the distance in bytes between vertically adjacent pixels.
	Stride int
	// Rect is the raster's bounds.
	Rect image.Rectangle
}

// NewHSV allocates a zeroed HSV raster.
func NewHSV(r image.Rectangle) *HSV {
	w, h := r.Dx(), r.Dy()
	return &HSV{
		Pix:    make([]uint8, 3*w*h),
		Stride: 3 * w,
		Rect:   r,
	}
}

// ColorModel implements image.Image.
func (p *HSV) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (p *HSV) Bounds() image.Rectangle { return p.Rect }

// At implements image.Image.
func (p *HSV) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	h, s, v := p.HSVAt(x, y)
	return color.RGBA{R: v, G: s, B: h, A: 255}
}

// PixOffset returns the index of the first element of Pix for pixel (x, y).
func (p *HSV) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// HSVAt returns the channels of pixel (x, y).
func (p *HSV) HSVAt(x, y int) (h, s, v uint8) {
	i := p.PixOffset(x, y)
	return p.Pix[i], p.Pix[i+1], p.Pix[i+2]
}

// SetHSV sets the channels of pixel (x, y).
func (p *HSV) SetHSV(x, y int, h, s, v uint8) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i], p.Pix[i+1], p.Pix[i+2] = h, s, v
}
