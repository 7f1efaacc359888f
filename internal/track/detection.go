package track

import "math"

// Detection is one frame's raw, unidentified bounding-box observation from
// the external detector. Coordinates are pixels with the origin at the
// top-left of the frame; XMin < XMax and YMin < YMax for a valid box.
type Detection struct {
	XMin       float64
	YMin       float64
	XMax       float64
	YMax       float64
	Label      string
	Confidence float64
}

// Center returns the box center in pixel coordinates.
func (d Detection) Center() (cx, cy float64) {
	return (d.XMin + d.XMax) / 2, (d.YMin + d.YMax) / 2
}

// Width returns the box width in pixels.
func (d Detection) Width() float64 { return d.XMax - d.XMin }

// Height returns the box height in pixels.
func (d Detection) Height() float64 { return d.YMax - d.YMin }

// Area returns the box area in square pixels.
func (d Detection) Area() float64 { return d.Width() * d.Height() }

// Valid reports whether the detection is well formed: a non-degenerate box
// with finite coordinates and a confidence inside [0, 1]. Malformed
// detections are dropped by FilterDetections rather than treated as errors.
func (d Detection) Valid() bool {
	for _, v := range []float64{d.XMin, d.YMin, d.XMax, d.YMax, d.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return d.XMin < d.XMax && d.YMin < d.YMax && d.Confidence >= 0 && d.Confidence <= 1
}

// IOU returns the intersection-over-union of two boxes in [0, 1].
func IOU(a, b Detection) float64 {
	ix1 := math.Max(a.XMin, b.XMin)
	iy1 := math.Max(a.YMin, b.YMin)
	ix2 := math.Min(a.XMax, b.XMax)
	iy2 := math.Min(a.YMax, b.YMax)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// FilterDetections drops malformed detections and applies a per-label
// minimum-confidence map. An empty map keeps every label; a label missing
// from a non-empty map is dropped. The input slice is not modified.
func FilterDetections(minConfidence map[string]float64, dets []Detection) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if !d.Valid() {
			continue
		}
		if len(minConfidence) > 0 {
			minConf, ok := minConfidence[d.Label]
			if !ok || d.Confidence < minConf {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}
