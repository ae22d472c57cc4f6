// Package render draws decoded point batches onto a raster surface.
package render

import (
	"image"
	"image/draw"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

const (
	DefaultWidth    = 800
	DefaultHeight   = 600
	DefaultGridStep = 0.1

	traceColor = "#ffff00"
	traceWidth = 1.0
	gridColor  = "#cccccc"
	gridWidth  = 0.5

	// segments per Stroke call
	strokeBatch = 512
)

// Surface is a fixed-size drawing surface. It is safe for concurrent use.
type Surface struct {
	mu     sync.Mutex
	dc     *gg.Context
	width  int
	height int
}

func NewSurface(width, height int) *Surface {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	s := &Surface{
		dc:     gg.NewContext(width, height),
		width:  width,
		height: height,
	}
	s.Clear()
	return s
}

func (s *Surface) Width() int  { return s.width }
func (s *Surface) Height() int { return s.height }

// Clear resets every pixel to transparent.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.ClearPath()
	s.dc.SetRGBA(0, 0, 0, 0)
	s.dc.Clear()
}

// DrawGrid strokes reference lines at every multiple of step along both
// axes, edges included.
func (s *Surface) DrawGrid(step float64) {
	if step <= 0 || step > 1 {
		step = DefaultGridStep
	}
	divisions := int(math.Round(1 / step))
	w, h := float64(s.width), float64(s.height)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.SetHexColor(gridColor)
	s.dc.SetLineWidth(gridWidth)
	for i := 0; i <= divisions; i++ {
		x := float64(i) / float64(divisions) * w
		s.dc.MoveTo(x, 0)
		s.dc.LineTo(x, h)
		s.dc.Stroke()
	}
	for i := 0; i <= divisions; i++ {
		y := float64(i) / float64(divisions) * h
		s.dc.MoveTo(0, y)
		s.dc.LineTo(w, y)
		s.dc.Stroke()
	}
}

// DrawPolyline maps interleaved x, y values from the unit square to pixels and
// strokes them as one connected line. A trailing unpaired value is ignored.
// It returns the number of points used.
func (s *Surface) DrawPolyline(values []float32) int {
	points := len(values) / 2
	if points == 0 {
		return 0
	}
	path := reduceColumns(values[:points*2], float64(s.width), float64(s.height))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc.SetHexColor(traceColor)
	s.dc.SetLineWidth(traceWidth)
	s.dc.MoveTo(path[0].X, path[0].Y)
	for k := 1; k < len(path); k++ {
		s.dc.LineTo(path[k].X, path[k].Y)
		if k%strokeBatch == 0 && k < len(path)-1 {
			s.dc.Stroke()
			s.dc.MoveTo(path[k].X, path[k].Y)
		}
	}
	s.dc.Stroke()
	return points
}

// reduceColumns maps values to pixels and collapses every run of consecutive
// points sharing a pixel column to its first, lowest, highest and last point,
// kept in drawing order. The run covers the same pixels either way.
func reduceColumns(values []float32, w, h float64) []gg.Point {
	n := len(values) / 2
	at := func(k int) gg.Point {
		return gg.Point{X: float64(values[k*2]) * w, Y: float64(values[k*2+1]) * h}
	}

	out := make([]gg.Point, 0, min(n, 4*int(w)+4))
	for start := 0; start < n; {
		first := at(start)
		col := math.Floor(first.X)
		lo, hi := start, start
		loY, hiY := first.Y, first.Y
		end := start + 1
		for ; end < n; end++ {
			p := at(end)
			if math.Floor(p.X) != col {
				break
			}
			if p.Y < loY {
				lo, loY = end, p.Y
			}
			if p.Y > hiY {
				hi, hiY = end, p.Y
			}
		}

		keep := [4]int{start, lo, hi, end - 1}
		if keep[1] > keep[2] {
			keep[1], keep[2] = keep[2], keep[1]
		}
		prev := -1
		for _, k := range keep {
			if k != prev {
				out = append(out, at(k))
				prev = k
			}
		}
		start = end
	}
	return out
}

// Snapshot returns a copy of the current pixels.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// Scaled returns a copy resized by factor. Factors outside (0, 1] return an
// unscaled snapshot.
func (s *Surface) Scaled(factor float64) *image.RGBA {
	src := s.Snapshot()
	if factor <= 0 || factor >= 1 {
		return src
	}
	w := max(1, int(float64(s.width)*factor))
	h := max(1, int(float64(s.height)*factor))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func (s *Surface) EncodePNG(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.EncodePNG(w)
}
