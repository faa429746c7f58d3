package vision

import (
	"image"
	"math"
)

// ContourArea implements Primitives using the shoelace formula.
func (Native) ContourArea(c Contour) float64 {
	if len(c) < 3 {
		return 0
	}
	var twice float64
	prev := c[len(c)-1]
	for _, p := range c {
		twice += float64(prev.X)*float64(p.Y) - float64(p.X)*float64(prev.Y)
		prev = p
	}
	return math.Abs(twice) / 2
}

// ArcLength implements Primitives.
func (Native) ArcLength(c Contour, closed bool) float64 {
	if len(c) < 2 {
		return 0
	}
	var length float64
	for i := 1; i < len(c); i++ {
		length += distance(c[i-1], c[i])
	}
	if closed {
		length += distance(c[len(c)-1], c[0])
	}
	return length
}

// BoundingRect implements Primitives. An empty contour yields an empty
// rectangle.
func (Native) BoundingRect(c Contour) image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

func distance(a, b image.Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
