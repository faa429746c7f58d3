// Package vision provides the raster primitives the detection stages are
// built from.
//
// The stages never call a kernel directly; they go through the Primitives
// interface so that the orchestration can be exercised with deterministic
// fakes. Native is the pure-Go implementation used in production. Its
// numerics follow the usual OpenCV conventions so that results line up with
// images processed by OpenCV-based tools:
//
//   - GaussianBlur derives its weights from the kernel size when sigma is 0,
//     using the fixed small kernels for sizes up to 7 and
//     sigma = 0.3*((ksize-1)*0.5 - 1) + 0.8 otherwise. Borders are reflected
//     without repeating the edge pixel (reflect-101).
//   - BGRToHSV produces 8-bit hue in 0-179 and saturation/value in 0-255,
//     computed with the same fixed-point tables OpenCV uses for 8-bit input.
//   - Erode and Dilate treat pixels outside the image as 0.
//   - FindExternalContours implements Suzuki-Abe border following and keeps
//     only the outer borders of top-level regions, compressed to their
//     direction-change vertices.
//
// # OpenCV Backend
//
// Built with cgo and the opencv tag, the package also provides OpenCV, which
// runs the same operations through gocv, and Default returns it instead of
// Native. Both produce identical masks and contours:
//
//	go build -tags opencv ./...
//
// # Coordinate System
//
// Points use image coordinates: origin at top-left, X rightward, Y downward.
// Color rasters are returned with their origin at (0, 0).
//
// # Thread Safety
//
// Native is stateless and safe for concurrent use. Row work inside a single
// call is split across goroutines with bild's parallel helper; results do not
// depend on the split.
package vision
