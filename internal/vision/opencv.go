//go:build cgo && opencv

package vision

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// OpenCV implements Primitives with gocv. It needs OpenCV 4 installed and is
// only compiled with cgo and the opencv build tag. DrawRectangle is Native's.
type OpenCV struct {
	Native
}

var _ Primitives = OpenCV{}

// Default returns the primitives used when none are given.
func Default() Primitives {
	return OpenCV{}
}

// GaussianBlur implements Primitives.
func (OpenCV) GaussianBlur(src image.Image, ksize int, sigma float64) (*image.NRGBA, error) {
	if err := checkImage(src); err != nil {
		return nil, errors.Wrap(err, "gaussian blur")
	}
	if _, err := GaussianKernel(ksize, sigma); err != nil {
		return nil, err
	}
	if sigma < 0 {
		sigma = 0
	}

	bgr, err := bgrMat(src)
	if err != nil {
		return nil, errors.Wrap(err, "gaussian blur")
	}
	defer bgr.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	if err := gocv.GaussianBlur(bgr, &blurred, image.Pt(ksize, ksize), sigma, sigma, gocv.BorderDefault); err != nil {
		return nil, errors.Wrap(err, "gaussian blur")
	}
	return nrgbaFromBGR(blurred)
}

// BGRToHSV implements Primitives.
func (OpenCV) BGRToHSV(src image.Image) (*HSV, error) {
	if err := checkImage(src); err != nil {
		return nil, errors.Wrap(err, "bgr to hsv")
	}
	bgr, err := bgrMat(src)
	if err != nil {
		return nil, errors.Wrap(err, "bgr to hsv")
	}
	defer bgr.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV); err != nil {
		return nil, errors.Wrap(err, "bgr to hsv")
	}

	out := NewHSV(image.Rect(0, 0, hsv.Cols(), hsv.Rows()))
	copy(out.Pix, hsv.ToBytes())
	return out, nil
}

// InRange implements Primitives.
func (OpenCV) InRange(src *HSV, lower, upper [3]uint8) (*image.Gray, error) {
	if src == nil {
		return nil, errors.New("in range: nil image")
	}
	if err := checkImage(src); err != nil {
		return nil, errors.Wrap(err, "in range")
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	m, err := matFromBytes(h, w, gocv.MatTypeCV8UC3, packRows(src.Pix, src.Stride, 3*w, h))
	if err != nil {
		return nil, errors.Wrap(err, "in range")
	}
	defer m.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	lb := gocv.NewScalar(float64(lower[0]), float64(lower[1]), float64(lower[2]), 0)
	ub := gocv.NewScalar(float64(upper[0]), float64(upper[1]), float64(upper[2]), 0)
	gocv.InRangeWithScalar(m, lb, ub, &mask)

	return grayFromMat(mask, src.Rect), nil
}

// Erode implements Primitives. The mask is padded with zeros first, because
// OpenCV's default border never erodes.
func (OpenCV) Erode(mask *image.Gray, se StructuringElement, iterations int) (*image.Gray, error) {
	m, kernel, err := morphInputs(mask, se, iterations, "erode")
	if err != nil {
		return nil, err
	}
	defer m.Close()
	defer kernel.Close()

	// Zeros in the padding stay zero under erosion, so one element's
	// reach is enough for any number of iterations.
	pad := se.Size.X
	if se.Size.Y > pad {
		pad = se.Size.Y
	}
	padded := gocv.NewMat()
	defer func() { padded.Close() }()
	gocv.CopyMakeBorder(m, &padded, pad, pad, pad, pad, gocv.BorderConstant, color.RGBA{})

	for i := 0; i < iterations; i++ {
		next := gocv.NewMat()
		if err := gocv.Erode(padded, &next, kernel); err != nil {
			next.Close()
			return nil, errors.Wrap(err, "erode")
		}
		padded.Close()
		padded = next
	}

	region := padded.Region(image.Rect(pad, pad, pad+m.Cols(), pad+m.Rows()))
	defer region.Close()
	inner := region.Clone()
	defer inner.Close()
	return grayFromMat(inner, mask.Rect), nil
}

// Dilate implements Primitives. OpenCV's default border already leaves
// dilation unaffected by pixels outside the image.
func (OpenCV) Dilate(mask *image.Gray, se StructuringElement, iterations int) (*image.Gray, error) {
	m, kernel, err := morphInputs(mask, se, iterations, "dilate")
	if err != nil {
		return nil, err
	}
	defer func() { m.Close() }()
	defer kernel.Close()

	for i := 0; i < iterations; i++ {
		next := gocv.NewMat()
		if err := gocv.Dilate(m, &next, kernel); err != nil {
			next.Close()
			return nil, errors.Wrap(err, "dilate")
		}
		m.Close()
		m = next
	}
	return grayFromMat(m, mask.Rect), nil
}

// FindExternalContours implements Primitives.
func (OpenCV) FindExternalContours(mask *image.Gray) ([]Contour, Hierarchy, error) {
	if mask == nil {
		return nil, nil, errors.New("find contours: nil mask")
	}
	if err := checkImage(mask); err != nil {
		return nil, nil, errors.Wrap(err, "find contours")
	}

	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	m, err := matFromBytes(h, w, gocv.MatTypeCV8U, packRows(mask.Pix, mask.Stride, w, h))
	if err != nil {
		return nil, nil, errors.Wrap(err, "find contours")
	}
	defer m.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	found := gocv.FindContoursWithParams(m, &hierarchy, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]Contour, 0, found.Size())
	nodes := make(Hierarchy, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		contours = append(contours, Contour(found.At(i).ToPoints()))
		v := hierarchy.GetVeciAt(0, i)
		nodes = append(nodes, HierarchyNode{
			Next:       int(v[0]),
			Previous:   int(v[1]),
			FirstChild: int(v[2]),
			Parent:     int(v[3]),
		})
	}
	return contours, nodes, nil
}

// ContourArea implements Primitives.
func (OpenCV) ContourArea(c Contour) float64 {
	if len(c) == 0 {
		return 0
	}
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()
	return gocv.ContourArea(pv)
}

// ArcLength implements Primitives.
func (OpenCV) ArcLength(c Contour, closed bool) float64 {
	if len(c) < 2 {
		return 0
	}
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()
	return gocv.ArcLength(pv, closed)
}

// BoundingRect implements Primitives.
func (OpenCV) BoundingRect(c Contour) image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()
	return gocv.BoundingRect(pv)
}

// FillContours implements Primitives. OpenCV rasterizes the filled contours
// into a mask, and covered pixels of the copy are replaced with c.
func (OpenCV) FillContours(dst image.Image, contours []Contour, c color.Color) (*image.NRGBA, error) {
	if err := checkImage(dst); err != nil {
		return nil, errors.Wrap(err, "fill contours")
	}

	out := imaging.Clone(dst)
	w, h := out.Rect.Dx(), out.Rect.Dy()

	pts := make([][]image.Point, 0, len(contours))
	for _, contour := range contours {
		if len(contour) > 0 {
			pts = append(pts, contour)
		}
	}
	if len(pts) == 0 {
		return out, nil
	}

	m := gocv.Zeros(h, w, gocv.MatTypeCV8U)
	defer m.Close()
	pv := gocv.NewPointsVectorFromPoints(pts)
	defer pv.Close()
	gocv.DrawContours(&m, pv, -1, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	fill := color.NRGBAModel.Convert(c).(color.NRGBA)
	for i, v := range m.ToBytes() {
		if v != 0 {
			out.SetNRGBA(i%w, i/w, fill)
		}
	}
	return out, nil
}

func morphInputs(mask *image.Gray, se StructuringElement, iterations int, op string) (gocv.Mat, gocv.Mat, error) {
	if mask == nil {
		return gocv.Mat{}, gocv.Mat{}, errors.Errorf("%s: nil mask", op)
	}
	if err := checkImage(mask); err != nil {
		return gocv.Mat{}, gocv.Mat{}, errors.Wrap(err, op)
	}
	if err := se.validate(); err != nil {
		return gocv.Mat{}, gocv.Mat{}, errors.Wrap(err, op)
	}
	if iterations < 1 {
		return gocv.Mat{}, gocv.Mat{}, errors.Errorf("%s: iterations must be >= 1, got %d", op, iterations)
	}
	if se.Anchor != (image.Point{X: se.Size.X / 2, Y: se.Size.Y / 2}) {
		return gocv.Mat{}, gocv.Mat{}, errors.Errorf("%s: only centered anchors are supported, got %v", op, se.Anchor)
	}

	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	m, err := matFromBytes(h, w, gocv.MatTypeCV8U, packRows(mask.Pix, mask.Stride, w, h))
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, errors.Wrap(err, op)
	}
	return m, gocv.GetStructuringElement(gocv.MorphRect, se.Size), nil
}

// bgrMat converts img to an 8-bit, 3-channel BGR Mat.
func bgrMat(img image.Image) (gocv.Mat, error) {
	n := asNRGBA(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	rgba, err := matFromBytes(h, w, gocv.MatTypeCV8UC4, packRows(n.Pix, n.Stride, 4*w, h))
	if err != nil {
		return gocv.Mat{}, err
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	if err := gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR); err != nil {
		bgr.Close()
		return gocv.Mat{}, err
	}
	return bgr, nil
}

// nrgbaFromBGR converts a BGR Mat to an opaque NRGBA raster.
func nrgbaFromBGR(bgr gocv.Mat) (*image.NRGBA, error) {
	rgba := gocv.NewMat()
	defer rgba.Close()
	if err := gocv.CvtColor(bgr, &rgba, gocv.ColorBGRToRGBA); err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, rgba.Cols(), rgba.Rows()))
	copy(out.Pix, rgba.ToBytes())
	return out, nil
}

func grayFromMat(m gocv.Mat, r image.Rectangle) *image.Gray {
	out := image.NewGray(r)
	copy(out.Pix, m.ToBytes())
	return out
}

// matFromBytes returns a Mat that owns a copy of data.
func matFromBytes(rows, cols int, mt gocv.MatType, data []byte) (gocv.Mat, error) {
	shared, err := gocv.NewMatFromBytes(rows, cols, mt, data)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer shared.Close()
	return shared.Clone(), nil
}

// packRows returns pix with row padding removed.
func packRows(pix []uint8, stride, rowBytes, rows int) []uint8 {
	if stride == rowBytes {
		return pix[:rowBytes*rows]
	}
	out := make([]uint8, 0, rowBytes*rows)
	for y := 0; y < rows; y++ {
		out = append(out, pix[y*stride:y*stride+rowBytes]...)
	}
	return out
}
