package render

import (
	"math"
	"time"
)

// Zoom bounds.
const (
	MinScale = 0.1
	MaxScale = 5.0
)

// ViewTransform maps content coordinates to screen coordinates:
// screen = content*K + (X, Y).
type ViewTransform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the transform with no translation and unit scale.
func Identity() ViewTransform { return ViewTransform{K: 1} }

// Apply maps a content point to the screen.
func (t ViewTransform) Apply(x, y float64) (float64, float64) {
	return x*t.K + t.X, y*t.K + t.Y
}

// Invert maps a screen point to content coordinates.
func (t ViewTransform) Invert(sx, sy float64) (float64, float64) {
	return (sx - t.X) / t.K, (sy - t.Y) / t.K
}

// Translated returns t panned by (dx, dy) screen units.
func (t ViewTransform) Translated(dx, dy float64) ViewTransform {
	t.X += dx
	t.Y += dy
	return t
}

// ScaledAt returns t zoomed by factor about the screen point (px, py). The
// resulting scale is clamped to [MinScale, MaxScale] and the content point
// under (px, py) stays put.
func (t ViewTransform) ScaledAt(px, py, factor float64) ViewTransform {
	if factor <= 0 || math.IsNaN(factor) {
		return t
	}
	k := clampScale(t.K * factor)
	cx, cy := t.Invert(px, py)
	return ViewTransform{X: px - cx*k, Y: py - cy*k, K: k}
}

func clampScale(k float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, k))
}

// CenteredOn returns the transform at scale k that puts the content point
// (x, y) at the middle of a w x h viewport.
func CenteredOn(x, y, k, w, h float64) ViewTransform {
	return ViewTransform{X: w/2 - k*x, Y: h/2 - k*y, K: k}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// EaseCubicInOut is the symmetric cubic easing curve on [0, 1].
func EaseCubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}

type transition struct {
	from, to ViewTransform
	start    time.Time
	duration time.Duration
	done     func()
}

// at returns the interpolated transform at now and whether the transition
// has finished.
func (tr *transition) at(now time.Time) (ViewTransform, bool) {
	if tr.duration <= 0 {
		return tr.to, true
	}
	p := float64(now.Sub(tr.start)) / float64(tr.duration)
	if p >= 1 {
		return tr.to, true
	}
	if p < 0 {
		p = 0
	}
	e := EaseCubicInOut(p)
	return ViewTransform{
		X: lerp(tr.from.X, tr.to.X, e),
		Y: lerp(tr.from.Y, tr.to.Y, e),
		K: lerp(tr.from.K, tr.to.K, e),
	}, false
}
