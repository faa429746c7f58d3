package vision

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// FillContours implements Primitives.
//
// Each contour is filled and its boundary stroked one pixel wide through the
// pixel centers, so border pixels are covered as well. Pixels with at least
// half coverage are replaced with c and the rest are left alone, so no pixel
// is ever blended. Contour points are relative to dst's top-left corner, and
// the result has its origin at (0, 0).
func (Native) FillContours(dst image.Image, contours []Contour, c color.Color) (*image.NRGBA, error) {
	if err := checkImage(dst); err != nil {
		return nil, errors.Wrap(err, "fill contours")
	}

	out := imaging.Clone(dst)
	width, height := out.Rect.Dx(), out.Rect.Dy()

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(1)

	var dots []image.Point
	for _, contour := range contours {
		switch len(contour) {
		case 0:
			continue
		case 1:
			dots = append(dots, contour[0])
			continue
		}
		dc.NewSubPath()
		for i, p := range contour {
			x, y := float64(p.X)+0.5, float64(p.Y)+0.5
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		dc.FillPreserve()
		dc.Stroke()
	}

	fill := color.NRGBAModel.Convert(c).(color.NRGBA)
	coverage := clone.AsRGBA(dc.Image())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if coverage.RGBAAt(x, y).A >= 0x80 {
				out.SetNRGBA(x, y, fill)
			}
		}
	}
	for _, p := range dots {
		out.SetNRGBA(p.X, p.Y, fill)
	}
	return out, nil
}

// DrawRectangle implements Primitives.
//
// Each side is a band thickness pixels wide around the rectangle's edge
// pixels; for thickness 2 the band covers the edge pixel and the one outside
// it. Bands are clipped to dst.
func (Native) DrawRectangle(dst *image.NRGBA, r image.Rectangle, c color.Color, thickness int) error {
	if dst == nil {
		return errors.New("draw rectangle: nil image")
	}
	if thickness < 1 {
		return errors.Errorf("draw rectangle: thickness must be >= 1, got %d", thickness)
	}
	if r.Empty() {
		return nil
	}

	// Edge pixels: left/top are Min, right/bottom are Max-1. Near bands
	// start lo pixels outside the edge, far bands end lo pixels outside it.
	x1, y1 := r.Min.X, r.Min.Y
	x2, y2 := r.Max.X-1, r.Max.Y-1
	lo := thickness / 2
	in := thickness - 1 - lo

	src := image.NewUniform(c)
	bands := []image.Rectangle{
		image.Rect(x1-lo, y1-lo, x2+lo+1, y1-lo+thickness), // top
		image.Rect(x1-lo, y2-in, x2+lo+1, y2+lo+1),         // bottom
		image.Rect(x1-lo, y1-lo, x1-lo+thickness, y2+lo+1), // left
		image.Rect(x2-in, y1-lo, x2+lo+1, y2+lo+1),         // right
	}
	for _, band := range bands {
		draw.Draw(dst, band.Intersect(dst.Rect), src, image.Point{}, draw.Src)
	}
	return nil
}
