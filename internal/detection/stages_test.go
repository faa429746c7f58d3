package detection

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/crop-detect/internal/config"
	"github.com/ironsheep/crop-detect/internal/vision"
)

var (
	blobColor       = color.NRGBA{R: 40, G: 200, B: 150, A: 255} // H81 S204 V200
	backgroundColor = color.NRGBA{R: 120, G: 80, B: 40, A: 255}  // H15, out of range
)

// createBlobImage creates a background image with blob-colored rectangles.
func createBlobImage(width, height int, blobs ...image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, backgroundColor)
		}
	}
	for _, r := range blobs {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetNRGBA(x, y, blobColor)
			}
		}
	}
	return img
}

// createMask creates a mask with the given rectangles set to 255.
func createMask(width, height int, fg ...image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, width, height))
	for _, r := range fg {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return m
}

func countForeground(m *image.Gray) int {
	n := 0
	for _, p := range m.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// square returns the simplified contour of a size x size block at (x, y).
func square(x, y, size int) vision.Contour {
	e := size - 1
	return vision.Contour{{x, y}, {x, y + e}, {x + e, y + e}, {x + e, y}}
}

var errBroken = errors.New("broken primitive")

// brokenPrims fails the named primitive and delegates everything else.
type brokenPrims struct {
	vision.Native
	fail string
}

func (b brokenPrims) GaussianBlur(src image.Image, ksize int, sigma float64) (*image.NRGBA, error) {
	if b.fail == "blur" {
		return nil, errBroken
	}
	return b.Native.GaussianBlur(src, ksize, sigma)
}

func (b brokenPrims) BGRToHSV(src image.Image) (*vision.HSV, error) {
	if b.fail == "hsv" {
		return nil, errBroken
	}
	return b.Native.BGRToHSV(src)
}

func (b brokenPrims) InRange(src *vision.HSV, lower, upper [3]uint8) (*image.Gray, error) {
	if b.fail == "inrange" {
		return nil, errBroken
	}
	return b.Native.InRange(src, lower, upper)
}

func (b brokenPrims) Dilate(mask *image.Gray, se vision.StructuringElement, iterations int) (*image.Gray, error) {
	if b.fail == "dilate" {
		return nil, errBroken
	}
	return b.Native.Dilate(mask, se, iterations)
}

func (b brokenPrims) FindExternalContours(mask *image.Gray) ([]vision.Contour, vision.Hierarchy, error) {
	if b.fail == "contours" {
		return nil, nil, errBroken
	}
	return b.Native.FindExternalContours(mask)
}

func (b brokenPrims) DrawRectangle(dst *image.NRGBA, r image.Rectangle, c color.Color, thickness int) error {
	if b.fail == "rect" {
		return errBroken
	}
	return b.Native.DrawRectangle(dst, r, c, thickness)
}

func TestNewStages_DefaultPrimitives(t *testing.T) {
	s := NewStages(nil, config.Default())
	assert.Equal(t, vision.Default(), s.prims)
	assert.Equal(t, config.Default(), s.Config())
}

func TestSegment_MatchesColorRange(t *testing.T) {
	cfg := config.Default()
	s := NewStages(nil, cfg)

	// Every combination of the bounds and one step outside them.
	hs := []uint8{64, 65, 81, 98, 99}
	ss := []uint8{32, 33, 200, 255}
	vs := []uint8{116, 117, 200, 255}

	hsv := vision.NewHSV(image.Rect(0, 0, len(hs)*len(ss)*len(vs), 1))
	x := 0
	for _, h := range hs {
		for _, sat := range ss {
			for _, v := range vs {
				hsv.SetHSV(x, 0, h, sat, v)
				x++
			}
		}
	}

	mask, err := s.Segment(hsv)
	require.NoError(t, err)

	for x := 0; x < hsv.Rect.Dx(); x++ {
		h, sat, v := hsv.HSVAt(x, 0)
		want := cfg.ColorRange.Contains(h, sat, v)
		assert.Equal(t, want, mask.GrayAt(x, 0).Y == 255, "hsv %d,%d,%d", h, sat, v)
	}
}

func TestRefine_NoiseRejection(t *testing.T) {
	s := NewStages(nil, config.Default())
	mask := createMask(50, 50,
		image.Rect(10, 10, 11, 11), // single pixel
		image.Rect(30, 30, 32, 32), // 2x2
		image.Rect(5, 40, 25, 41),  // 1px thick line
	)

	refined, err := s.Refine(mask)
	require.NoError(t, err)
	assert.Equal(t, 0, countForeground(refined))

	contours, _, err := s.ExtractContours(refined)
	require.NoError(t, err)
	assert.Empty(t, contours)
	assert.Empty(t, s.Filter(contours))
}

func TestRefine_GrowsSurvivors(t *testing.T) {
	s := NewStages(nil, config.Default())
	mask := createMask(100, 100, image.Rect(30, 30, 60, 60))

	refined, err := s.Refine(mask)
	require.NoError(t, err)

	// 30x30 erodes to 28x28 and dilates to 34x34.
	assert.Equal(t, 34*34, countForeground(refined))
	assert.Equal(t, uint8(255), refined.GrayAt(28, 28).Y)
	assert.Equal(t, uint8(0), refined.GrayAt(27, 27).Y)
}

func TestExtractContours_Empty(t *testing.T) {
	s := NewStages(nil, config.Default())
	contours, hierarchy, err := s.ExtractContours(createMask(64, 64))
	require.NoError(t, err)
	assert.Empty(t, contours)
	assert.Empty(t, hierarchy)

	assert.Empty(t, s.Filter(contours))
	_, detections, err := s.Annotate(createBlobImage(64, 64), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestFilter_Conjunction(t *testing.T) {
	s := NewStages(nil, config.Default())

	thin := vision.Contour{{0, 0}, {0, 400}, {1, 400}, {1, 0}} // area 400, perimeter 802
	small := square(0, 0, 20)                                  // area 361, perimeter 76
	big := square(0, 0, 30)                                    // area 841, perimeter 116

	accepted := s.Filter([]vision.Contour{thin, small, big})
	require.Len(t, accepted, 1)
	assert.Equal(t, 841.0, accepted[0].Area)
	assert.Equal(t, 116.0, accepted[0].Perimeter)

	// Enough area but too short a boundary.
	strict := config.Filter{MinArea: 600, MinPerimeter: 200}
	assert.Empty(t, Accept(s.Measure([]vision.Contour{big}), strict))
}

func TestFilter_ThresholdsInclusive(t *testing.T) {
	rule := config.Filter{MinArea: 841, MinPerimeter: 116}
	c := NewStages(nil, config.Default()).Measure([]vision.Contour{square(0, 0, 30)})
	assert.Len(t, Accept(c, rule), 1)
}

func TestFilter_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := NewStages(nil, config.Default())

	var contours []vision.Contour
	for i := 0; i < 200; i++ {
		w, h := 1+rng.Intn(60), 1+rng.Intn(60)
		contours = append(contours, vision.Contour{{0, 0}, {0, h}, {w, h}, {w, 0}})
	}
	candidates := s.Measure(contours)

	prev := len(candidates) + 1
	for area := 0.0; area <= 4000; area += 100 {
		n := len(Accept(candidates, config.Filter{MinArea: area, MinPerimeter: 30}))
		assert.LessOrEqual(t, n, prev, "raising min area to %v", area)
		prev = n
	}

	prev = len(candidates) + 1
	for perim := 0.0; perim <= 260; perim += 10 {
		n := len(Accept(candidates, config.Filter{MinArea: 600, MinPerimeter: perim}))
		assert.LessOrEqual(t, n, prev, "raising min perimeter to %v", perim)
		prev = n
	}
}

func TestFilter_KeepsOrder(t *testing.T) {
	s := NewStages(nil, config.Default())
	accepted := s.Filter([]vision.Contour{square(100, 0, 40), square(0, 0, 5), square(0, 100, 30)})
	require.Len(t, accepted, 2)
	assert.Equal(t, square(100, 0, 40), accepted[0].Contour)
	assert.Equal(t, square(0, 100, 30), accepted[1].Contour)
}

func TestAnnotate_CopyOnWrite(t *testing.T) {
	s := NewStages(nil, config.Default())
	original := createBlobImage(80, 80, image.Rect(20, 20, 50, 50))
	before := append([]uint8(nil), original.Pix...)

	accepted := s.Measure([]vision.Contour{square(20, 20, 30)})
	annotated, detections, err := s.Annotate(original, accepted, nil)
	require.NoError(t, err)

	assert.Equal(t, before, original.Pix, "original must not change")
	require.Len(t, detections, 1)
	assert.Equal(t, BoundingRegion{X: 20, Y: 20, Width: 30, Height: 30}, detections[0].Bounds)

	red := color.NRGBA{R: 255, A: 255}
	assert.Equal(t, red, annotated.NRGBAAt(20, 20))
	assert.Equal(t, red, annotated.NRGBAAt(19, 35))
	assert.Equal(t, red, annotated.NRGBAAt(50, 35))
	assert.Equal(t, blobColor, annotated.NRGBAAt(35, 35))
}

func TestAnnotate_AccumulatesAndCallsBack(t *testing.T) {
	s := NewStages(nil, config.Default())
	original := createBlobImage(120, 60)
	accepted := s.Measure([]vision.Contour{square(10, 10, 30), square(70, 10, 30)})

	var calls []int
	var snapshots []*image.NRGBA
	annotated, detections, err := s.Annotate(original, accepted, func(i int, canvas *image.NRGBA) error {
		calls = append(calls, i)
		snapshots = append(snapshots, image.NewNRGBA(canvas.Rect))
		copy(snapshots[len(snapshots)-1].Pix, canvas.Pix)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, []int{0, 1}, calls)

	red := color.NRGBA{R: 255, A: 255}
	assert.Equal(t, red, snapshots[0].NRGBAAt(10, 10))
	assert.Equal(t, backgroundColor, snapshots[0].NRGBAAt(70, 10))

	// The final canvas carries both rectangles.
	assert.Equal(t, red, annotated.NRGBAAt(10, 10))
	assert.Equal(t, red, annotated.NRGBAAt(70, 10))
	assert.Equal(t, snapshots[1].Pix, annotated.Pix)
}

func TestAnnotate_CallbackError(t *testing.T) {
	s := NewStages(nil, config.Default())
	accepted := s.Measure([]vision.Contour{square(10, 10, 30)})

	_, _, err := s.Annotate(createBlobImage(60, 60), accepted, func(int, *image.NRGBA) error {
		return errors.New("disk full")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncode))

	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageAnnotate, stage)
}

func TestAnnotate_Containment(t *testing.T) {
	s := NewStages(nil, config.Default())
	mask := createMask(120, 120,
		image.Rect(10, 10, 45, 40),
		image.Rect(60, 60, 100, 110),
		image.Rect(70, 5, 110, 35),
	)
	contours, _, err := s.ExtractContours(mask)
	require.NoError(t, err)

	accepted := s.Filter(contours)
	require.Len(t, accepted, 3)

	_, detections, err := s.Annotate(createBlobImage(120, 120), accepted, nil)
	require.NoError(t, err)
	require.Len(t, detections, len(accepted))

	for i, d := range detections {
		assert.Equal(t, accepted[i].Area, d.Area)
		for _, p := range accepted[i].Contour {
			assert.True(t, d.Bounds.Contains(p), "detection %d must contain %v", i, p)
		}
	}
}

// A 200x200 refined mask with a ~50 px² blob and a ~800 px² blob gives one
// detection, for the larger blob.
func TestScenario_SmallAndLargeBlob(t *testing.T) {
	s := NewStages(nil, config.Default())
	mask := createMask(200, 200,
		image.Rect(20, 20, 28, 28),     // area 49, perimeter 28
		image.Rect(100, 100, 130, 130), // area 841, perimeter 116
	)

	contours, _, err := s.ExtractContours(mask)
	require.NoError(t, err)
	require.Len(t, contours, 2)

	accepted := s.Filter(contours)
	require.Len(t, accepted, 1)

	_, detections, err := s.Annotate(createBlobImage(200, 200), accepted, nil)
	require.NoError(t, err)
	require.Len(t, detections, 1)

	assert.InDelta(t, 800, detections[0].Area, 50)
	assert.InDelta(t, 120, detections[0].Perimeter, 5)
	assert.Equal(t, BoundingRegion{X: 100, Y: 100, Width: 30, Height: 30}, detections[0].Bounds)
	assert.Equal(t, []float64{841}, Areas(detections))
}

func TestStages_ColorImage(t *testing.T) {
	s := NewStages(nil, config.Default())
	img := createBlobImage(200, 200,
		image.Rect(100, 100, 140, 140),
		image.Rect(20, 20, 22, 22), // speck removed by erosion
	)

	smoothed, err := s.Preprocess(img)
	require.NoError(t, err)
	hsv, err := s.ConvertColor(smoothed)
	require.NoError(t, err)
	mask, err := s.Segment(hsv)
	require.NoError(t, err)
	assert.Equal(t, 40*40+2*2, countForeground(mask))

	refined, err := s.Refine(mask)
	require.NoError(t, err)
	contours, _, err := s.ExtractContours(refined)
	require.NoError(t, err)
	require.Len(t, contours, 1)

	accepted := s.Filter(contours)
	require.Len(t, accepted, 1)
	assert.Equal(t, 43.0*43.0, accepted[0].Area)

	_, detections, err := s.Annotate(img, accepted, nil)
	require.NoError(t, err)
	assert.Equal(t, BoundingRegion{X: 98, Y: 98, Width: 44, Height: 44}, detections[0].Bounds)
}

func TestOverlayContours(t *testing.T) {
	s := NewStages(nil, config.Default())
	img := createBlobImage(40, 40)

	out, err := s.OverlayContours(img, []vision.Contour{square(10, 10, 10)})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, out.NRGBAAt(15, 15))
	assert.Equal(t, backgroundColor, img.NRGBAAt(15, 15))
}

func TestStages_PrimitiveFailures(t *testing.T) {
	img := createBlobImage(60, 60, image.Rect(10, 10, 50, 50))

	tests := []struct {
		fail  string
		stage Stage
	}{
		{"blur", StagePreprocess},
		{"hsv", StageConvertColor},
		{"inrange", StageSegment},
		{"dilate", StageRefine},
		{"contours", StageExtractContours},
		{"rect", StageAnnotate},
	}

	for _, tt := range tests {
		t.Run(tt.fail, func(t *testing.T) {
			s := NewStages(brokenPrims{fail: tt.fail}, config.Default())
			err := runStages(s, img)
			require.Error(t, err)

			assert.True(t, errors.Is(err, ErrOperation))
			assert.True(t, errors.Is(err, errBroken))
			stage, ok := StageOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.stage, stage)
		})
	}
}

func TestStages_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Blur.KernelSize = 4
	_, err := NewStages(nil, cfg).Preprocess(createBlobImage(10, 10))
	assert.True(t, errors.Is(err, ErrOperation))

	cfg = config.Default()
	cfg.Draw.RectColor = "nope"
	_, _, err = NewStages(nil, cfg).Annotate(createBlobImage(10, 10), nil, nil)
	assert.True(t, errors.Is(err, ErrOperation))
}

// runStages chains every stage the way a caller would.
func runStages(s *Stages, img image.Image) error {
	smoothed, err := s.Preprocess(img)
	if err != nil {
		return err
	}
	hsv, err := s.ConvertColor(smoothed)
	if err != nil {
		return err
	}
	mask, err := s.Segment(hsv)
	if err != nil {
		return err
	}
	refined, err := s.Refine(mask)
	if err != nil {
		return err
	}
	contours, _, err := s.ExtractContours(refined)
	if err != nil {
		return err
	}
	_, _, err = s.Annotate(img, s.Filter(contours), nil)
	return err
}
