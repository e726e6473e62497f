package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions reports non-finite or non-positive original/display
// dimensions. It indicates a caller bug, not a runtime data problem, so
// ScaleForDisplay fails instead of degrading.
var ErrInvalidDimensions = errors.New("geometry: dimensions must be finite and positive")

// Rect is a rectangle with a top-left origin: Y grows downward, X1 < X2 and
// Y1 < Y2 for non-degenerate input. Units are whatever the caller scaled
// from (points or pixels). Conversion from bottom-left document space
// happens upstream; this package only rescales.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ScaledBox is a Rect in display pixels with its extent precomputed.
type ScaledBox struct {
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the box without the cached extent.
func (b ScaledBox) Rect() Rect {
	return Rect{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}
}

// ScaleOptions controls post-scaling adjustments.
type ScaleOptions struct {
	// ClampToBounds keeps all coordinates inside [0,displayW]x[0,displayH].
	ClampToBounds bool
	// EnforceMinimum expands boxes below MinSize symmetrically around their
	// center. Enforcement never shrinks a box.
	EnforceMinimum bool
	// MinSize is the minimum width and height in display pixels.
	MinSize float64
}

// DefaultScaleOptions matches the interactive-overlay defaults: clamped,
// with a 10px minimum hit target.
func DefaultScaleOptions() ScaleOptions {
	return ScaleOptions{ClampToBounds: true, EnforceMinimum: true, MinSize: 10}
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// ScaleForDisplay proportionally rescales a top-left-origin source rectangle
// into display pixels: scaleX = displayW/originalW, scaleY = displayH/originalH.
// All four dimensions must be finite and positive or ErrInvalidDimensions is
// returned. Clamping runs before minimum enforcement; when enforcement pushes
// an edge box outside the display, the box is shifted back inside rather than
// shrunk, so the minimum survives everywhere the display can hold it.
func ScaleForDisplay(r Rect, originalW, originalH, displayW, displayH float64, opts ScaleOptions) (ScaledBox, error) {
	for _, d := range []float64{originalW, originalH, displayW, displayH} {
		if !finitePositive(d) {
			return ScaledBox{}, fmt.Errorf("%w: got %gx%g -> %gx%g", ErrInvalidDimensions, originalW, originalH, displayW, displayH)
		}
	}

	scaleX := displayW / originalW
	scaleY := displayH / originalH

	x1 := r.X1 * scaleX
	y1 := r.Y1 * scaleY
	x2 := r.X2 * scaleX
	y2 := r.Y2 * scaleY

	if opts.ClampToBounds {
		x1 = clamp(x1, 0, displayW)
		x2 = clamp(x2, 0, displayW)
		y1 = clamp(y1, 0, displayH)
		y2 = clamp(y2, 0, displayH)
	}

	if opts.EnforceMinimum && opts.MinSize > 0 {
		x1, x2 = expandToMinimum(x1, x2, opts.MinSize)
		y1, y2 = expandToMinimum(y1, y2, opts.MinSize)
		if opts.ClampToBounds {
			x1, x2 = shiftIntoBounds(x1, x2, displayW)
			y1, y2 = shiftIntoBounds(y1, y2, displayH)
		}
	}

	return ScaledBox{
		X1:     x1,
		Y1:     y1,
		X2:     x2,
		Y2:     y2,
		Width:  x2 - x1,
		Height: y2 - y1,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// expandToMinimum grows the [lo,hi] span symmetrically around its center
// until it is at least minSize long. Spans already long enough are returned
// unchanged.
func expandToMinimum(lo, hi, minSize float64) (float64, float64) {
	if hi-lo >= minSize {
		return lo, hi
	}
	center := (lo + hi) / 2
	return center - minSize/2, center + minSize/2
}

// shiftIntoBounds slides a span back into [0,limit] without changing its
// length. A span longer than the limit is pinned to [0,limit].
func shiftIntoBounds(lo, hi, limit float64) (float64, float64) {
	if hi-lo >= limit {
		return 0, limit
	}
	if lo < 0 {
		return 0, hi - lo
	}
	if hi > limit {
		return limit - (hi - lo), limit
	}
	return lo, hi
}

// ValidateRect checks a source rectangle against its reference frame before
// it is rendered. It rejects non-finite and negative coordinates, spans
// without positive extent, and boxes that fall even partially outside
// [0,imageW]x[0,imageH]. A nil return means the box is renderable.
func ValidateRect(r Rect, imageW, imageH float64) error {
	for _, v := range []float64{r.X1, r.Y1, r.X2, r.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate in [%g %g %g %g]", r.X1, r.Y1, r.X2, r.Y2)
		}
		if v < 0 {
			return fmt.Errorf("negative coordinate in [%g %g %g %g]", r.X1, r.Y1, r.X2, r.Y2)
		}
	}
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return fmt.Errorf("non-positive extent: width=%g height=%g", r.X2-r.X1, r.Y2-r.Y1)
	}
	if r.X2 > imageW || r.Y2 > imageH {
		return fmt.Errorf("box [%g %g %g %g] exceeds bounds %gx%g", r.X1, r.Y1, r.X2, r.Y2, imageW, imageH)
	}
	return nil
}

// Area returns the rectangle's area, zero for degenerate rectangles.
func (r Rect) Area() float64 {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Contains reports whether the point lies inside the rectangle. Edges
// count as inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Intersection returns the overlapping area of two rectangles.
func (r Rect) Intersection(other Rect) float64 {
	x1 := math.Max(r.X1, other.X1)
	y1 := math.Max(r.Y1, other.Y1)
	x2 := math.Min(r.X2, other.X2)
	y2 := math.Min(r.Y2, other.Y2)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// IoU returns intersection-over-union, 0 when both rectangles are
// degenerate or disjoint.
func (r Rect) IoU(other Rect) float64 {
	inter := r.Intersection(other)
	union := r.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
