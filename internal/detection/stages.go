package detection

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/crop-detect/internal/config"
	"github.com/ironsheep/crop-detect/internal/vision"
)

// Stages runs the individual detection steps with one set of primitives and
// one configuration. A Stages value holds no state between calls and is safe
// for concurrent use if its primitives are.
type Stages struct {
	prims vision.Primitives
	cfg   config.Config
}

// NewStages returns the stages for cfg, using prims for all raster work.
// A nil prims selects vision.Default.
func NewStages(prims vision.Primitives, cfg config.Config) *Stages {
	if prims == nil {
		prims = vision.Default()
	}
	return &Stages{prims: prims, cfg: cfg}
}

// Config returns the configuration the stages were built with.
func (s *Stages) Config() config.Config { return s.cfg }

// Preprocess smooths src with the configured Gaussian kernel.
func (s *Stages) Preprocess(src image.Image) (*image.NRGBA, error) {
	out, err := s.prims.GaussianBlur(src, s.cfg.Blur.KernelSize, s.cfg.Blur.Sigma)
	if err != nil {
		return nil, operationError(StagePreprocess, err)
	}
	return out, nil
}

// ConvertColor converts a smoothed color image to HSV.
func (s *Stages) ConvertColor(src image.Image) (*vision.HSV, error) {
	out, err := s.prims.BGRToHSV(src)
	if err != nil {
		return nil, operationError(StageConvertColor, err)
	}
	return out, nil
}

// Segment marks the pixels whose HSV value lies in the configured range.
func (s *Stages) Segment(hsv *vision.HSV) (*image.Gray, error) {
	r := s.cfg.ColorRange
	mask, err := s.prims.InRange(hsv, r.Min.Array(), r.Max.Array())
	if err != nil {
		return nil, operationError(StageSegment, err)
	}
	return mask, nil
}

// Refine erodes mask to drop small specks and then dilates the result to
// regrow and merge what survived.
func (s *Stages) Refine(mask *image.Gray) (*image.Gray, error) {
	erode, dilate := s.cfg.Erode, s.cfg.Dilate

	eroded, err := s.prims.Erode(mask, vision.RectElement(erode.KernelSize, erode.KernelSize), erode.Iterations)
	if err != nil {
		return nil, operationError(StageRefine, errors.Wrap(err, "erosion"))
	}
	dilated, err := s.prims.Dilate(eroded, vision.RectElement(dilate.KernelSize, dilate.KernelSize), dilate.Iterations)
	if err != nil {
		return nil, operationError(StageRefine, errors.Wrap(err, "dilation"))
	}
	return dilated, nil
}

// ExtractContours returns the outer boundary of every top-level region of
// mask, in discovery order.
func (s *Stages) ExtractContours(mask *image.Gray) ([]vision.Contour, vision.Hierarchy, error) {
	contours, hierarchy, err := s.prims.FindExternalContours(mask)
	if err != nil {
		return nil, nil, operationError(StageExtractContours, err)
	}
	return contours, hierarchy, nil
}

// OverlayContours returns a copy of original with every contour filled in
// the configured contour color.
func (s *Stages) OverlayContours(original image.Image, contours []vision.Contour) (*image.NRGBA, error) {
	c, err := s.cfg.Draw.Contour()
	if err != nil {
		return nil, operationError(StageExtractContours, err)
	}
	out, err := s.prims.FillContours(original, contours, c)
	if err != nil {
		return nil, operationError(StageExtractContours, err)
	}
	return out, nil
}

// Measure computes the area and closed perimeter of every contour.
func (s *Stages) Measure(contours []vision.Contour) []Candidate {
	out := make([]Candidate, len(contours))
	for i, c := range contours {
		out[i] = Candidate{
			Contour:   c,
			Area:      s.prims.ContourArea(c),
			Perimeter: s.prims.ArcLength(c, true),
		}
	}
	return out
}

// Filter returns the contours whose area and perimeter both reach the
// configured minimums, in their original order.
func (s *Stages) Filter(contours []vision.Contour) []Candidate {
	return Accept(s.Measure(contours), s.cfg.Filter)
}

// Accept keeps the candidates that pass rule, in order.
func Accept(candidates []Candidate, rule config.Filter) []Candidate {
	var accepted []Candidate
	for _, c := range candidates {
		if rule.Accept(c.Area, c.Perimeter) {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

// DrawFunc observes the annotated canvas after rectangle i has been drawn.
// The canvas keeps changing after the call returns.
type DrawFunc func(i int, canvas *image.NRGBA) error

// Annotate draws the bounding rectangle of each accepted candidate onto a
// copy of original and returns that copy with one Detection per candidate.
//
// Rectangles accumulate on the copy, so after the last one it shows every
// detection. When onDraw is not nil it is called after each rectangle; its
// error stops the run and is reported as an encode failure.
func (s *Stages) Annotate(original image.Image, accepted []Candidate, onDraw DrawFunc) (*image.NRGBA, []Detection, error) {
	if original == nil {
		return nil, nil, operationError(StageAnnotate, errors.New("nil image"))
	}
	rectColor, err := s.cfg.Draw.Rect()
	if err != nil {
		return nil, nil, operationError(StageAnnotate, err)
	}

	canvas := imaging.Clone(original)
	detections := make([]Detection, 0, len(accepted))

	for i, c := range accepted {
		r := s.prims.BoundingRect(c.Contour)
		if err := s.prims.DrawRectangle(canvas, r, rectColor, s.cfg.Draw.RectThickness); err != nil {
			return nil, nil, operationError(StageAnnotate, err)
		}
		detections = append(detections, Detection{
			Area:      c.Area,
			Perimeter: c.Perimeter,
			Bounds:    RegionFromRect(r),
		})
		if onDraw != nil {
			if err := onDraw(i, canvas); err != nil {
				return nil, nil, NewStageError(StageAnnotate, KindEncode, err)
			}
		}
	}

	return canvas, detections, nil
}
