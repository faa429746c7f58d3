package vision

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Contour is a closed boundary polyline. The last point connects back to the
// first.
type Contour []image.Point

// HierarchyNode relates one contour to its neighbours by index, -1 meaning
// none.
type HierarchyNode struct {
	Next       int `json:"next"`
	Previous   int `json:"previous"`
	FirstChild int `json:"first_child"`
	Parent     int `json:"parent"`
}

// Hierarchy has one node per contour, in the same order.
type Hierarchy []HierarchyNode

// Primitives is the set of raster operations the detection stages need.
//
// Implementations must not modify their inputs; every operation that
// produces a raster returns a new one.
type Primitives interface {
	// GaussianBlur smooths a color image with a ksize x ksize Gaussian.
	// A sigma <= 0 is derived from ksize.
	GaussianBlur(src image.Image, ksize int, sigma float64) (*image.NRGBA, error)

	// BGRToHSV converts a color image to 8-bit HSV (hue 0-179).
	BGRToHSV(src image.Image) (*HSV, error)

	// InRange returns a mask that is 255 where every channel of src lies in
	// [lower, upper] and 0 elsewhere.
	InRange(src *HSV, lower, upper [3]uint8) (*image.Gray, error)

	// Erode applies morphological erosion with a zero-valued border.
	Erode(mask *image.Gray, se StructuringElement, iterations int) (*image.Gray, error)

	// Dilate applies morphological dilation with a zero-valued border.
	Dilate(mask *image.Gray, se StructuringElement, iterations int) (*image.Gray, error)

	// FindExternalContours traces the outer boundary of every top-level
	// foreground region of mask.
	FindExternalContours(mask *image.Gray) ([]Contour, Hierarchy, error)

	// ContourArea returns the unsigned polygon area of c.
	ContourArea(c Contour) float64

	// ArcLength returns the length of c, including the closing edge when
	// closed is true.
	ArcLength(c Contour, closed bool) float64

	// BoundingRect returns the smallest rectangle containing every point of c.
	// Max is exclusive.
	BoundingRect(c Contour) image.Rectangle

	// FillContours returns a (0, 0)-origin copy of dst with every contour
	// filled in c, border included. Contour points are offsets from dst's
	// top-left corner. Filled pixels are replaced, never blended, as with an
	// 8-connected non-antialiased fill.
	FillContours(dst image.Image, contours []Contour, c color.Color) (*image.NRGBA, error)

	// DrawRectangle strokes the outline of r onto dst in place.
	DrawRectangle(dst *image.NRGBA, r image.Rectangle, c color.Color, thickness int) error
}

// Native implements Primitives in pure Go.
type Native struct{}

var _ Primitives = Native{}

// asNRGBA returns img as an NRGBA raster with its origin at (0, 0), copying
// only when it has to. Callers must treat the result as read-only.
func asNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

func checkImage(img image.Image) error {
	if img == nil {
		return errors.New("nil image")
	}
	if img.Bounds().Empty() {
		return errors.Errorf("empty image bounds %v", img.Bounds())
	}
	return nil
}
