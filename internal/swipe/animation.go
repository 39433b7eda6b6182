package swipe

import "math"

const (
	// DefaultThresholdRatio is the share of the width a drag must exceed.
	DefaultThresholdRatio = 0.25
	// ExitMargin is how far past the edge a resolved card is flung.
	ExitMargin = 140.0

	maxRotation = 8.0
)

// Geometry describes the surface cards are dragged across.
type Geometry struct {
	Width float64
	// ThresholdRatio defaults to DefaultThresholdRatio when zero.
	ThresholdRatio float64
}

func (g Geometry) Threshold() float64 {
	ratio := g.ThresholdRatio
	if ratio <= 0 {
		ratio = DefaultThresholdRatio
	}
	return g.Width * ratio
}

// Exceeds reports whether dx resolves a decision. A drag exactly at the
// threshold does not.
func (g Geometry) Exceeds(dx float64) bool {
	return math.Abs(dx) > g.Threshold()
}

// ExitTarget is the horizontal offset a resolving card animates to.
func (g Geometry) ExitTarget(d Direction) float64 {
	return float64(d) * (g.Width + ExitMargin)
}

// Frame is the set of render parameters for one drag offset.
type Frame struct {
	X, Y float64

	Rotation       float64
	LikeOpacity    float64
	DislikeOpacity float64
	LikeGlow       float64
	DislikeGlow    float64

	NextScale   float64
	NextOffsetY float64
	NextOpacity float64
}

// Animate computes the frame for a card at (dx, dy) on a surface of width w.
func Animate(dx, dy, w float64) Frame {
	return Frame{
		X: dx,
		Y: dy,

		Rotation:       Interpolate(dx, []float64{-w / 2, 0, w / 2}, []float64{-maxRotation, 0, maxRotation}),
		LikeOpacity:    Interpolate(dx, []float64{0, w / 6}, []float64{0, 1}),
		DislikeOpacity: Interpolate(dx, []float64{-w / 6, 0}, []float64{1, 0}),
		LikeGlow:       Interpolate(dx, []float64{0, w / 3}, []float64{0, 1}),
		DislikeGlow:    Interpolate(dx, []float64{-w / 3, 0}, []float64{1, 0}),

		NextScale:   Interpolate(dx, []float64{-w, 0, w}, []float64{0.965, 0.94, 0.965}),
		NextOffsetY: Interpolate(dx, []float64{-w, 0, w}, []float64{10, 18, 10}),
		NextOpacity: Interpolate(dx, []float64{-w, 0, w}, []float64{0.82, 0.65, 0.82}),
	}
}
