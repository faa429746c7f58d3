package vision

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/pkg/errors"
)

// hsvShift is the number of fractional bits in the division tables.
const hsvShift = 12

// HueRange is the number of hue steps in an 8-bit HSV raster (degrees/2).
const HueRange = 180

// sdivTable[i] = 255/i and hdivTable[i] = 180/(6*i), in fixed point.
var sdivTable, hdivTable = hsvTables()

func hsvTables() (sdiv, hdiv [256]int32) {
	for i := 1; i < 256; i++ {
		sdiv[i] = int32(math.RoundToEven(float64(255<<hsvShift) / float64(i)))
		hdiv[i] = int32(math.RoundToEven(float64(HueRange<<hsvShift) / (6 * float64(i))))
	}
	return sdiv, hdiv
}

// PixelToHSV converts one 8-bit pixel given in blue, green, red order.
//
// V is the largest channel and S = 255*(V-min)/V. Hue is measured from
// whichever channel holds V (red first, then green, then blue) and scaled
// to 0-179.
func PixelToHSV(b, g, r uint8) (h, s, v uint8) {
	bi, gi, ri := int32(b), int32(g), int32(r)
	vmax := max(bi, gi, ri)
	vmin := min(bi, gi, ri)
	diff := vmax - vmin

	var hue int32
	switch vmax {
	case ri:
		hue = gi - bi
	case gi:
		hue = bi - ri + 2*diff
	default:
		hue = ri - gi + 4*diff
	}

	const half = 1 << (hsvShift - 1)
	sat := (diff*sdivTable[vmax] + half) >> hsvShift
	hue = (hue*hdivTable[diff] + half) >> hsvShift
	if hue < 0 {
		hue += HueRange
	}
	return uint8(hue), uint8(sat), uint8(vmax)
}

// BGRToHSV implements Primitives.
func (Native) BGRToHSV(src image.Image) (*HSV, error) {
	if err := checkImage(src); err != nil {
		return nil, errors.Wrap(err, "hsv conversion")
	}

	in := asNRGBA(src)
	width, height := in.Rect.Dx(), in.Rect.Dy()
	dst := NewHSV(image.Rect(0, 0, width, height))

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			s := in.Pix[y*in.Stride:]
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < width; x++ {
				p := s[x*4:]
				d[x*3], d[x*3+1], d[x*3+2] = PixelToHSV(p[2], p[1], p[0])
			}
		}
	})

	return dst, nil
}

// InRange implements Primitives.
func (Native) InRange(src *HSV, lower, upper [3]uint8) (*image.Gray, error) {
	if src == nil {
		return nil, errors.New("in range: nil image")
	}
	if err := checkImage(src); err != nil {
		return nil, errors.Wrap(err, "in range")
	}

	b := src.Rect
	width, height := b.Dx(), b.Dy()
	mask := image.NewGray(b)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			s := src.Pix[y*src.Stride:]
			d := mask.Pix[y*mask.Stride:]
			for x := 0; x < width; x++ {
				h, sat, v := s[x*3], s[x*3+1], s[x*3+2]
				if h >= lower[0] && h <= upper[0] &&
					sat >= lower[1] && sat <= upper[1] &&
					v >= lower[2] && v <= upper[2] {
					d[x] = 255
				}
			}
		}
	})

	return mask, nil
}
