package vision

import (
	"image"

	"github.com/pkg/errors"
)

// Neighbour directions, counter-clockwise on screen starting east.
var (
	dirX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	dirY = [8]int{0, -1, -1, -1, 0, 1, 1, 1}
)

// frameID is the border number given to the image frame.
const frameID = 1

type border struct {
	outer  bool
	parent int
}

// FindExternalContours implements Primitives.
//
// The mask is scanned in raster order and every border is followed as in
// Suzuki and Abe (1985), with 8-connected foreground. Only outer borders
// whose parent is the image frame are returned, so regions nested inside
// another region's hole are skipped. Each contour keeps the pixels where the
// boundary changes direction, plus its starting pixel. Contours are in the
// order their first pixel was reached by the scan.
func (Native) FindExternalContours(mask *image.Gray) ([]Contour, Hierarchy, error) {
	if mask == nil {
		return nil, nil, errors.New("find contours: nil mask")
	}
	if err := checkImage(mask); err != nil {
		return nil, nil, errors.Wrap(err, "find contours")
	}

	b := mask.Rect
	width, height := b.Dx(), b.Dy()

	// One pixel of background around the mask so the tracer never leaves
	// the grid.
	pw, ph := width+2, height+2
	f := make([]int32, pw*ph)
	for y := 0; y < height; y++ {
		row := mask.Pix[mask.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < width; x++ {
			if row[x] != 0 {
				f[(y+1)*pw+x+1] = 1
			}
		}
	}

	var offsets [8]int
	for d := range offsets {
		offsets[d] = dirY[d]*pw + dirX[d]
	}

	// borders is indexed by border number; 0 is unused, 1 is the frame.
	borders := []border{{}, {outer: false, parent: 0}}
	var contours []Contour
	nbd := int32(frameID)

	for y := 1; y < ph-1; y++ {
		lnbd := int32(frameID)
		for x := 1; x < pw-1; x++ {
			idx := y*pw + x
			v := f[idx]
			if v == 0 {
				continue
			}

			var outer bool
			var startDir int
			switch {
			case v == 1 && f[idx-1] == 0:
				outer, startDir = true, 4
			case v >= 1 && f[idx+1] == 0:
				outer, startDir = false, 0
				if v > 1 {
					lnbd = v
				}
			default:
				if v != 1 {
					lnbd = abs32(v)
				}
				continue
			}

			nbd++
			prev := borders[lnbd]
			parent := int(lnbd)
			if outer == prev.outer {
				parent = prev.parent
			}
			borders = append(borders, border{outer: outer, parent: parent})

			pts := followBorder(f, offsets, pw, idx, startDir, nbd)
			if outer && parent == frameID {
				contours = append(contours, simplifyChain(pts, b.Min.X-1, b.Min.Y-1))
			}

			if f[idx] != 1 {
				lnbd = abs32(f[idx])
			}
		}
	}

	hierarchy := make(Hierarchy, len(contours))
	for i := range hierarchy {
		hierarchy[i] = HierarchyNode{Next: i + 1, Previous: i - 1, FirstChild: -1, Parent: -1}
	}
	if n := len(hierarchy); n > 0 {
		hierarchy[n-1].Next = -1
	}

	return contours, hierarchy, nil
}

// followBorder traces one border starting at start, whose background
// neighbour lies in direction startDir, marking visited pixels with nbd.
// It returns the border pixels in padded coordinates, as {x, y} points.
func followBorder(f []int32, offsets [8]int, pw, start, startDir int, nbd int32) []image.Point {
	toPoint := func(i int) image.Point { return image.Pt(i%pw, i/pw) }

	first := -1
	for k := 0; k < 8; k++ {
		d := (startDir - k + 8) % 8
		if f[start+offsets[d]] != 0 {
			first = d
			break
		}
	}
	if first < 0 {
		f[start] = -nbd
		return []image.Point{toPoint(start)}
	}

	p1 := start + offsets[first]
	p3 := start
	back := first // direction from p3 to the previous border pixel
	pts := []image.Point{toPoint(start)}

	for {
		next := -1
		eastClear := false
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			if f[p3+offsets[d]] != 0 {
				next = d
				break
			}
			if d == 0 {
				eastClear = true
			}
		}

		if eastClear {
			f[p3] = -nbd
		} else if f[p3] == 1 {
			f[p3] = nbd
		}

		p4 := p3 + offsets[next]
		if p4 == start && p3 == p1 {
			return pts
		}
		pts = append(pts, toPoint(p4))
		back = (next + 4) % 8
		p3 = p4
	}
}

// simplifyChain drops the points where the boundary keeps going in the
// same direction and shifts the rest by (dx, dy). The first point is always
// kept.
func simplifyChain(pts []image.Point, dx, dy int) Contour {
	shift := image.Pt(dx, dy)
	n := len(pts)
	if n <= 2 {
		out := make(Contour, n)
		for i, p := range pts {
			out[i] = p.Add(shift)
		}
		return out
	}

	out := Contour{pts[0].Add(shift)}
	for i := 1; i < n; i++ {
		in := pts[i].Sub(pts[i-1])
		outDir := pts[(i+1)%n].Sub(pts[i])
		if in != outDir {
			out = append(out, pts[i].Add(shift))
		}
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
