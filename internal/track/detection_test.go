package track

import (
	"math"
	"testing"
)

func TestDetectionCenterAndArea(t *testing.T) {
	d := Detection{XMin: 10, YMin: 20, XMax: 30, YMax: 60}
	cx, cy := d.Center()
	if cx != 20 || cy != 40 {
		t.Errorf("center: got (%f, %f), want (20, 40)", cx, cy)
	}
	if d.Width() != 20 || d.Height() != 40 {
		t.Errorf("extent: got %fx%f, want 20x40", d.Width(), d.Height())
	}
	if d.Area() != 800 {
		t.Errorf("area: got %f, want 800", d.Area())
	}
}

func TestDetectionValid(t *testing.T) {
	cases := []struct {
		name string
		det  Detection
		want bool
	}{
		{"well formed", Detection{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Confidence: 0.5}, true},
		{"inverted x", Detection{XMin: 10, YMin: 0, XMax: 0, YMax: 10, Confidence: 0.5}, false},
		{"zero width", Detection{XMin: 5, YMin: 0, XMax: 5, YMax: 10, Confidence: 0.5}, false},
		{"nan coord", Detection{XMin: math.NaN(), YMin: 0, XMax: 10, YMax: 10, Confidence: 0.5}, false},
		{"confidence above one", Detection{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Confidence: 1.5}, false},
		{"negative confidence", Detection{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Confidence: -0.1}, false},
	}
	for _, tc := range cases {
		if got := tc.det.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIOU(t *testing.T) {
	a := Detection{XMin: 0, YMin: 0, XMax: 10, YMax: 10}

	if got := IOU(a, a); math.Abs(got-1) > 1e-12 {
		t.Errorf("self IoU: got %f, want 1", got)
	}

	b := Detection{XMin: 20, YMin: 20, XMax: 30, YMax: 30}
	if got := IOU(a, b); got != 0 {
		t.Errorf("disjoint IoU: got %f, want 0", got)
	}

	// Half overlap: intersection 50, union 150.
	c := Detection{XMin: 5, YMin: 0, XMax: 15, YMax: 10}
	if got := IOU(a, c); math.Abs(got-50.0/150.0) > 1e-12 {
		t.Errorf("partial IoU: got %f, want %f", got, 50.0/150.0)
	}
}

func TestFilterDetections(t *testing.T) {
	dets := []Detection{
		{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Label: "deer", Confidence: 0.9},
		{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Label: "deer", Confidence: 0.2},
		{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Label: "fox", Confidence: 0.9},
		{XMin: 10, YMin: 0, XMax: 0, YMax: 10, Label: "deer", Confidence: 0.9}, // malformed
	}

	// Empty map keeps every valid detection.
	if got := FilterDetections(nil, dets); len(got) != 3 {
		t.Errorf("nil filter: kept %d, want 3", len(got))
	}

	// Label missing from a non-empty map is dropped.
	kept := FilterDetections(map[string]float64{"deer": 0.5}, dets)
	if len(kept) != 1 || kept[0].Label != "deer" || kept[0].Confidence != 0.9 {
		t.Errorf("deer-only filter: got %+v, want the single confident deer", kept)
	}
}
