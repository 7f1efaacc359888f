package track

import "math"

// BehaviorLabel is the coarse motion category reported for a track.
type BehaviorLabel string

const (
	BehaviorStationary BehaviorLabel = "stationary"
	BehaviorSlow       BehaviorLabel = "slow"
	BehaviorFast       BehaviorLabel = "fast"
)

// BehaviorClassifier maps a smoothed, size-relative speed onto a behavior
// label. Thresholds are inclusive upward: a speed exactly at SlowMin is
// slow, exactly at FastMin is fast.
type BehaviorClassifier struct {
	SlowMin float64 // below this the object counts as stationary
	FastMin float64 // at or above this the object counts as fast
}

// Classify returns the label for the given relative speed. Negative or
// non-finite speeds are treated as zero.
func (c BehaviorClassifier) Classify(speed float64) BehaviorLabel {
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = 0
	}
	switch {
	case speed < c.SlowMin:
		return BehaviorStationary
	case speed < c.FastMin:
		return BehaviorSlow
	default:
		return BehaviorFast
	}
}

// BehaviorAnalyzer turns raw per-frame track motion into a stable behavior
// label. Raw speed is smoothed with an exponential moving average, then
// normalised by the object's characteristic size so a distant small animal
// and a close large one classify on the same scale. It also flags tracks
// whose center sits inside a configurable border margin, where partial
// boxes make speed unreliable.
type BehaviorAnalyzer struct {
	Classifier BehaviorClassifier
	// Smoothing is the EMA weight on the previous smoothed speed,
	// in [0, 1). 0 disables smoothing.
	Smoothing float64
	// FrameW, FrameH are the frame dimensions in pixels.
	FrameW, FrameH float64
	// BorderMarginRatio is the near-border band as a fraction of each
	// frame dimension.
	BorderMarginRatio float64
}

// SmoothSpeed folds a raw per-frame speed into the previous smoothed value.
func (a BehaviorAnalyzer) SmoothSpeed(prev, raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		raw = 0
	}
	if a.Smoothing <= 0 {
		return raw
	}
	return a.Smoothing*prev + (1-a.Smoothing)*raw
}

// RelativeSpeed converts an absolute speed (px/s) into a size-relative one
// by dividing by the object's characteristic size, the box diagonal. A
// degenerate size falls back to the frame diagonal so the result stays
// finite.
func (a BehaviorAnalyzer) RelativeSpeed(speed, boxW, boxH float64) float64 {
	size := math.Hypot(boxW, boxH)
	if size <= 0 || math.IsNaN(size) {
		size = math.Hypot(a.FrameW, a.FrameH)
	}
	if size <= 0 {
		return 0
	}
	return speed / size
}

// NearBorder reports whether (cx, cy) lies within the border margin of the
// frame.
func (a BehaviorAnalyzer) NearBorder(cx, cy float64) bool {
	if a.FrameW <= 0 || a.FrameH <= 0 || a.BorderMarginRatio <= 0 {
		return false
	}
	mx := a.FrameW * a.BorderMarginRatio
	my := a.FrameH * a.BorderMarginRatio
	return cx < mx || cx > a.FrameW-mx || cy < my || cy > a.FrameH-my
}
