package vision

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/pkg/errors"
)

// StructuringElement is a solid rectangular neighbourhood with an anchor.
type StructuringElement struct {
	// Size is the width and height of the rectangle.
	Size image.Point
	// Anchor is the position within the rectangle that is placed on the
	// pixel being computed.
	Anchor image.Point
}

// RectElement returns a w x h rectangle anchored at its center.
func RectElement(w, h int) StructuringElement {
	return StructuringElement{
		Size:   image.Pt(w, h),
		Anchor: image.Pt(w/2, h/2),
	}
}

func (se StructuringElement) validate() error {
	if se.Size.X < 1 || se.Size.Y < 1 {
		return errors.Errorf("structuring element size must be positive, got %v", se.Size)
	}
	if !se.Anchor.In(image.Rectangle{Max: se.Size}) {
		return errors.Errorf("structuring element anchor %v outside %v", se.Anchor, se.Size)
	}
	return nil
}

// Erode implements Primitives. A pixel stays set only when every pixel under
// the element is set; pixels outside the image count as unset.
func (Native) Erode(mask *image.Gray, se StructuringElement, iterations int) (*image.Gray, error) {
	return morph(mask, se, iterations, true)
}

// Dilate implements Primitives. A pixel becomes the largest value under the
// element; pixels outside the image count as unset.
func (Native) Dilate(mask *image.Gray, se StructuringElement, iterations int) (*image.Gray, error) {
	return morph(mask, se, iterations, false)
}

func morph(mask *image.Gray, se StructuringElement, iterations int, erode bool) (*image.Gray, error) {
	op := "dilate"
	if erode {
		op = "erode"
	}
	if mask == nil {
		return nil, errors.Errorf("%s: nil mask", op)
	}
	if err := checkImage(mask); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := se.validate(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if iterations < 1 {
		return nil, errors.Errorf("%s: iterations must be >= 1, got %d", op, iterations)
	}

	b := mask.Rect
	width, height := b.Dx(), b.Dy()

	cur := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		copy(cur[y*width:(y+1)*width], mask.Pix[mask.PixOffset(b.Min.X, b.Min.Y+y):])
	}

	// A rectangle is separable, so each pass is a 1-D min/max along rows
	// and then along columns.
	for i := 0; i < iterations; i++ {
		cur = morphPass(cur, width, height, se.Size.X, se.Anchor.X, true, erode)
		cur = morphPass(cur, width, height, se.Size.Y, se.Anchor.Y, false, erode)
	}

	out := image.NewGray(b)
	for y := 0; y < height; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+width], cur[y*width:(y+1)*width])
	}
	return out, nil
}

func morphPass(src []uint8, width, height, size, anchor int, horizontal, erode bool) []uint8 {
	dst := make([]uint8, len(src))
	n, lines := height, width
	if horizontal {
		n, lines = width, height
	}

	parallel.Line(lines, func(start, end int) {
		for l := start; l < end; l++ {
			at := func(i int) int {
				if horizontal {
					return l*width + i
				}
				return i*width + l
			}
			for i := 0; i < n; i++ {
				lo := i - anchor
				hi := lo + size - 1
				var v uint8
				if erode {
					if lo < 0 || hi >= n {
						dst[at(i)] = 0
						continue
					}
					v = 255
					for k := lo; k <= hi; k++ {
						if p := src[at(k)]; p < v {
							v = p
						}
					}
				} else {
					for k := max(lo, 0); k <= min(hi, n-1); k++ {
						if p := src[at(k)]; p > v {
							v = p
						}
					}
				}
				dst[at(i)] = v
			}
		}
	})

	return dst
}
