package track

import (
	"fmt"
	"math"
)

// ForbiddenCost marks a track/detection pair the associator must never
// select. Gated-out entries in the cost matrix carry this value.
const ForbiddenCost = 1e18

// CostMetric selects the dissimilarity measure used to build the cost
// matrix.
type CostMetric string

const (
	// MetricEuclidean is the Euclidean distance between the track's
	// predicted center and the detection's center, in pixels.
	MetricEuclidean CostMetric = "euclidean"
	// MetricIOU is 1 - IoU between the track's last smoothed box and the
	// detection's box. Non-overlapping boxes cost 1.0 but are still
	// subject to the distance gate.
	MetricIOU CostMetric = "iou"
)

// Valid reports whether the metric names a known measure.
func (m CostMetric) Valid() bool {
	return m == MetricEuclidean || m == MetricIOU
}

// CostMatrixBuilder produces the (tracks x detections) dissimilarity matrix
// consumed by the associator. Rows are tracks in the order given, columns
// detections in the order given.
type CostMatrixBuilder struct {
	Metric CostMetric
	// GateDistancePx forbids any pair whose predicted-center to
	// detection-center distance exceeds it. Applies to both metrics so an
	// overlapping but far-flung box (degenerate input) cannot match.
	GateDistancePx float64
}

// trackGeometry is the per-track view the builder needs: the predicted
// center and the last smoothed bounding box.
type trackGeometry struct {
	cx, cy float64
	box    Detection
}

// Build returns the gated cost matrix for the given track geometries and
// detections. Zero tracks or zero detections yield a zero-row or
// zero-column matrix respectively.
func (b CostMatrixBuilder) Build(tracks []trackGeometry, dets []Detection) [][]float64 {
	cost := make([][]float64, len(tracks))
	for i, trk := range tracks {
		row := make([]float64, len(dets))
		for j, det := range dets {
			row[j] = b.pairCost(trk, det)
		}
		cost[i] = row
	}
	return cost
}

func (b CostMatrixBuilder) pairCost(trk trackGeometry, det Detection) float64 {
	dcx, dcy := det.Center()
	dist := math.Hypot(dcx-trk.cx, dcy-trk.cy)
	if b.GateDistancePx > 0 && dist > b.GateDistancePx {
		return ForbiddenCost
	}
	switch b.Metric {
	case MetricIOU:
		return 1 - IOU(trk.box, det)
	default:
		return dist
	}
}

// ParseCostMetric converts a config string into a CostMetric, rejecting
// unknown names at startup rather than silently falling back.
func ParseCostMetric(s string) (CostMetric, error) {
	m := CostMetric(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown cost metric %q (want %q or %q)", s, MetricEuclidean, MetricIOU)
	}
	return m, nil
}
