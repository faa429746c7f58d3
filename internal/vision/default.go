//go:build !(cgo && opencv)

package vision

// Default returns the primitives used when none are given. Builds without
// cgo and the opencv tag always use Native.
func Default() Primitives {
	return Native{}
}
