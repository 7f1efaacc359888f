package track

import (
	"math"
	"testing"
)

func TestBehaviorClassifierThresholds(t *testing.T) {
	c := BehaviorClassifier{SlowMin: 0.01, FastMin: 0.05}

	cases := []struct {
		speed float64
		want  BehaviorLabel
	}{
		{0, BehaviorStationary},
		{0.009, BehaviorStationary},
		{0.01, BehaviorSlow}, // threshold itself classifies upward
		{0.03, BehaviorSlow},
		{0.05, BehaviorFast}, // threshold itself classifies upward
		{1.0, BehaviorFast},
		{-5, BehaviorStationary},
		{math.NaN(), BehaviorStationary},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.speed); got != tc.want {
			t.Errorf("Classify(%f) = %q, want %q", tc.speed, got, tc.want)
		}
	}
}

func TestBehaviorAnalyzerSmoothSpeed(t *testing.T) {
	a := BehaviorAnalyzer{Smoothing: 0.7}

	got := a.SmoothSpeed(10, 20)
	if math.Abs(got-13) > 1e-9 {
		t.Errorf("EMA: got %f, want 13", got)
	}

	// Disabled smoothing passes the raw value through.
	a.Smoothing = 0
	if got := a.SmoothSpeed(10, 20); got != 20 {
		t.Errorf("no smoothing: got %f, want 20", got)
	}

	// Non-finite raw input counts as zero.
	a.Smoothing = 0.5
	if got := a.SmoothSpeed(10, math.Inf(1)); got != 5 {
		t.Errorf("inf raw speed: got %f, want 5", got)
	}
}

func TestBehaviorAnalyzerRelativeSpeed(t *testing.T) {
	a := BehaviorAnalyzer{FrameW: 1280, FrameH: 720}

	got := a.RelativeSpeed(50, 30, 40) // diagonal 50
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("relative speed: got %f, want 1", got)
	}

	// Degenerate box falls back to the frame diagonal.
	got = a.RelativeSpeed(50, 0, 0)
	want := 50 / math.Hypot(1280, 720)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("degenerate box: got %f, want %f", got, want)
	}
}

func TestBehaviorAnalyzerNearBorder(t *testing.T) {
	a := BehaviorAnalyzer{FrameW: 1000, FrameH: 500, BorderMarginRatio: 0.1}

	cases := []struct {
		cx, cy float64
		want   bool
	}{
		{500, 250, false}, // frame center
		{50, 250, true},   // inside left margin (100px)
		{960, 250, true},  // inside right margin
		{500, 30, true},   // inside top margin (50px)
		{500, 460, true},  // inside bottom margin
		{150, 100, false}, // clear of all margins
	}
	for _, tc := range cases {
		if got := a.NearBorder(tc.cx, tc.cy); got != tc.want {
			t.Errorf("NearBorder(%f, %f) = %v, want %v", tc.cx, tc.cy, got, tc.want)
		}
	}

	// Disabled margin never flags.
	a.BorderMarginRatio = 0
	if a.NearBorder(1, 1) {
		t.Error("zero margin ratio must never flag near-border")
	}
}
