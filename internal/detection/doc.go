// Package detection provides the stages of the color blob detector.
//
// Each stage is a pure mapping from one raster (or contour set) to the next,
// built on an injected vision.Primitives implementation and parameterized by
// a config.Config. Stages never modify their inputs.
//
// # Stage Order
//
// The stages are meant to run in a fixed order:
//
//  1. Preprocess: Gaussian smoothing of the source color image
//  2. ConvertColor: device color to 8-bit HSV (hue 0-179)
//  3. Segment: inclusive per-channel range test, giving a binary mask
//  4. Refine: erosion with a small element, then dilation with a larger one
//  5. ExtractContours: outer boundaries of every top-level mask region
//  6. Filter: keep contours whose area and perimeter both reach the thresholds
//  7. Annotate: draw a bounding rectangle per accepted contour on a copy of
//     the original image
//
// The erosion element is smaller than the dilation element. Swapping the
// order or equalizing the sizes changes detection counts.
//
// SampleColors reads pixels the way ConvertColor and Segment see them, for
// tuning the color range.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// A BoundingRegion's Width and Height count pixels, so a region with X=5 and
// Width=10 covers columns 5 through 14.
//
// # Errors
//
// Stage failures are reported as *StageError values naming the stage and
// one of three kinds: decode, operation or encode. Use errors.Is with
// ErrDecode, ErrOperation or ErrEncode to test the kind.
package detection
