package vision

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/pkg/errors"
)

// smallGaussianKernels are the fixed kernels used for odd sizes up to 7 when
// no sigma is given.
var smallGaussianKernels = map[int][]float64{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

// DeriveSigma returns the Gaussian spread used for a kernel of size ksize
// when none is given.
func DeriveSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// GaussianKernel returns the normalized 1-D weights of a ksize Gaussian.
//
// With sigma <= 0 the fixed small kernels are used for sizes 1, 3, 5 and 7,
// and DeriveSigma is used for larger sizes.
func GaussianKernel(ksize int, sigma float64) ([]float64, error) {
	if ksize < 1 || ksize%2 == 0 {
		return nil, errors.Errorf("gaussian kernel size must be positive and odd, got %d", ksize)
	}
	if sigma <= 0 {
		if k, ok := smallGaussianKernels[ksize]; ok {
			return append([]float64(nil), k...), nil
		}
		sigma = DeriveSigma(ksize)
	}

	kernel := make([]float64, ksize)
	scale := -0.5 / (sigma * sigma)
	var sum float64
	for i := range kernel {
		x := float64(i) - float64(ksize-1)*0.5
		kernel[i] = math.Exp(scale * x * x)
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel, nil
}

// GaussianBlur implements Primitives.
//
// The kernel is applied separably, rows first, to the three color channels.
// Alpha is forced to opaque. Results are rounded half up, which matches a
// fixed-point implementation exactly for the small kernels.
func (Native) GaussianBlur(src image.Image, ksize int, sigma float64) (*image.NRGBA, error) {
	if err := checkImage(src); err != nil {
		return nil, errors.Wrap(err, "gaussian blur")
	}
	kernel, err := GaussianKernel(ksize, sigma)
	if err != nil {
		return nil, err
	}

	in := asNRGBA(src)
	width, height := in.Rect.Dx(), in.Rect.Dy()
	radius := ksize / 2

	rows := make([]float64, width*height*3)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			line := in.Pix[y*in.Stride:]
			for x := 0; x < width; x++ {
				var r, g, b float64
				for k, w := range kernel {
					p := line[reflect101(x+k-radius, width)*4:]
					r += w * float64(p[0])
					g += w * float64(p[1])
					b += w * float64(p[2])
				}
				o := (y*width + x) * 3
				rows[o], rows[o+1], rows[o+2] = r, g, b
			}
		}
	})

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var r, g, b float64
				for k, w := range kernel {
					o := (reflect101(y+k-radius, height)*width + x) * 3
					r += w * rows[o]
					g += w * rows[o+1]
					b += w * rows[o+2]
				}
				d := dst.Pix[y*dst.Stride+x*4:]
				d[0], d[1], d[2], d[3] = roundByte(r), roundByte(g), roundByte(b), 255
			}
		}
	})

	return dst, nil
}

// reflect101 maps an out-of-range index back into [0, n) by mirroring
// around the edge pixel without repeating it: -1 -> 1, n -> n-2.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

func roundByte(v float64) uint8 {
	v = math.Floor(v + 0.5)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
