package detection

import (
	"image"

	"github.com/ironsheep/crop-detect/internal/vision"
)

// BoundingRegion is an axis-aligned rectangle in pixel coordinates.
//
// (X, Y) is the top-left pixel. Width and Height are pixel counts, so the
// region covers columns X through X+Width-1.
type BoundingRegion struct {
	X      int `json:"x"`      // Left edge
	Y      int `json:"y"`      // Top edge
	Width  int `json:"width"`  // Horizontal extent in pixels
	Height int `json:"height"` // Vertical extent in pixels
}

// RegionFromRect converts an image.Rectangle with exclusive Max.
func RegionFromRect(r image.Rectangle) BoundingRegion {
	return BoundingRegion{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image.Rectangle with exclusive Max.
func (b BoundingRegion) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Contains reports whether p lies within [X, X+Width] x [Y, Y+Height].
func (b BoundingRegion) Contains(p image.Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width &&
		p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// Candidate is a contour together with its measured area and perimeter.
type Candidate struct {
	Contour   vision.Contour `json:"-"`
	Area      float64        `json:"area"`
	Perimeter float64        `json:"perimeter"`
}

// Detection is an accepted blob.
type Detection struct {
	// Area is the contour's polygon area in square pixels.
	Area float64 `json:"area"`

	// Perimeter is the contour's closed arc length in pixels.
	Perimeter float64 `json:"perimeter"`

	// Bounds is the smallest region containing every contour vertex.
	Bounds BoundingRegion `json:"bounds"`
}

// Areas returns the area of each detection, in order.
func Areas(detections []Detection) []float64 {
	areas := make([]float64, len(detections))
	for i, d := range detections {
		areas[i] = d.Area
	}
	return areas
}
