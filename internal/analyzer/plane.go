package analyzer

import (
	"image"
	"image/draw"
)

// plane is a zero-origin 8-bit image with a packed stride.
type plane struct {
	w, h int
	pix  []uint8
}

func newPlane(w, h int) plane {
	return plane{w: w, h: h, pix: make([]uint8, w*h)}
}

func grayPlane(img image.Image) plane {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return plane{w: g.Rect.Dx(), h: g.Rect.Dy(), pix: g.Pix}
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return plane{w: b.Dx(), h: b.Dy(), pix: g.Pix}
}

func (p plane) extent() (lo, hi uint8) {
	lo = 255
	for _, v := range p.pix {
		lo, hi = min(lo, v), max(hi, v)
	}
	return lo, hi
}

// threshold marks the pixels keep accepts with 255.
func (p plane) threshold(keep func(uint8) bool) plane {
	out := newPlane(p.w, p.h)
	for i, v := range p.pix {
		if keep(v) {
			out.pix[i] = 255
		}
	}
	return out
}

// edges marks interior pixels whose Sobel gradient exceeds threshold.
func (p plane) edges(threshold float64) plane {
	out := newPlane(p.w, p.h)
	limit := threshold * threshold
	at := func(i int) float64 { return float64(p.pix[i]) }
	for y := 1; y < p.h-1; y++ {
		for x := 1; x < p.w-1; x++ {
			i := y*p.w + x
			up, down := i-p.w, i+p.w
			gx := at(up+1) + 2*at(i+1) + at(down+1) - at(up-1) - 2*at(i-1) - at(down-1)
			gy := at(down-1) + 2*at(down) + at(down+1) - at(up-1) - 2*at(up) - at(up+1)
			if gx*gx+gy*gy > limit {
				out.pix[i] = 255
			}
		}
	}
	return out
}

// dilate grows bright regions by radius pixels (square window), iterations
// times. The max filter is separable, so it runs as a row pass and a column pass.
func (p plane) dilate(radius, iterations int) plane {
	cur := p
	for range iterations {
		rows := newPlane(p.w, p.h)
		for y := 0; y < p.h; y++ {
			line := cur.pix[y*p.w : (y+1)*p.w]
			for x := range line {
				var m uint8
				for _, v := range line[max(x-radius, 0):min(x+radius+1, p.w)] {
					m = max(m, v)
				}
				rows.pix[y*p.w+x] = m
			}
		}
		cols := newPlane(p.w, p.h)
		for x := 0; x < p.w; x++ {
			for y := 0; y < p.h; y++ {
				var m uint8
				for yy := max(y-radius, 0); yy < min(y+radius+1, p.h); yy++ {
					m = max(m, rows.pix[yy*p.w+x])
				}
				cols.pix[y*p.w+x] = m
			}
		}
		cur = cols
	}
	return cur
}

// components returns the bounding boxes of 4-connected regions brighter than
// mid-gray, in scan order of their first pixel.
func (p plane) components() []image.Rectangle {
	seen := make([]bool, len(p.pix))
	var rects []image.Rectangle
	var stack []int
	for start, v := range p.pix {
		if v <= 128 || seen[start] {
			continue
		}
		r := image.Rect(start%p.w, start/p.w, start%p.w+1, start/p.w+1)
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%p.w, i/p.w
			r = r.Union(image.Rect(x, y, x+1, y+1))

			for _, n := range [4]int{i - 1, i + 1, i - p.w, i + p.w} {
				if n < 0 || n >= len(p.pix) || seen[n] || p.pix[n] <= 128 {
					continue
				}
				// no wrap across row ends
				if (n == i-1 && x == 0) || (n == i+1 && x == p.w-1) {
					continue
				}
				seen[n] = true
				stack = append(stack, n)
			}
		}
		rects = append(rects, r)
	}
	return rects
}
