package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrackerConfig() TrackerConfig {
	return TrackerConfig{
		FrameW:            1280,
		FrameH:            720,
		UseKalman:         true,
		Estimator:         testEstimatorConfig(),
		Metric:            MetricEuclidean,
		GateDistancePx:    120,
		HitsToConfirm:     3,
		LostAfterMisses:   5,
		RetireAfterMisses: 15,
		MaxHistory:        300,
		SlowMinRel:        0.01,
		FastMinRel:        0.05,
		SpeedSmoothing:    0.7,
		SizeSmoothing:     0.7,
		BorderMarginRatio: 0.1,
	}
}

func detAt(cx, cy float64) Detection {
	return Detection{
		XMin: cx - 5, YMin: cy - 5, XMax: cx + 5, YMax: cy + 5,
		Label: "deer", Confidence: 0.9,
	}
}

const testDt = 1.0 / 30.0

func TestTrackerConfigValidate(t *testing.T) {
	t.Parallel()

	if err := testTrackerConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TrackerConfig)
	}{
		{"zero frame width", func(c *TrackerConfig) { c.FrameW = 0 }},
		{"bad metric", func(c *TrackerConfig) { c.Metric = "chebyshev" }},
		{"zero gate", func(c *TrackerConfig) { c.GateDistancePx = 0 }},
		{"zero hits to confirm", func(c *TrackerConfig) { c.HitsToConfirm = 0 }},
		{"retire below lost", func(c *TrackerConfig) { c.RetireAfterMisses = 2; c.LostAfterMisses = 5 }},
		{"smoothing out of range", func(c *TrackerConfig) { c.SpeedSmoothing = 1.0 }},
		{"fast below slow", func(c *TrackerConfig) { c.SlowMinRel = 0.1; c.FastMinRel = 0.05 }},
		{"huge border margin", func(c *TrackerConfig) { c.BorderMarginRatio = 0.6 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testTrackerConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTrackerCreateAndConfirm(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.HitsToConfirm = 1
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	// Frame 1: one detection creates a Tentative track.
	res := tr.Update([]Detection{{XMin: 10, YMin: 10, XMax: 20, YMax: 20, Label: "deer", Confidence: 0.9}}, testDt)
	assert.Equal(t, 1, res.Created)

	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, StateTentative, active[0].State)

	// Frame 2: a shifted detection matches and confirms.
	res = tr.Update([]Detection{{XMin: 12, YMin: 10, XMax: 22, YMax: 20, Label: "deer", Confidence: 0.9}}, testDt)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 0, res.Created)

	active = tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, StateConfirmed, active[0].State)
	assert.Greater(t, active[0].VX, 0.0, "velocity should point along the shift")
}

func TestTrackerHitsToConfirmCounts(t *testing.T) {
	t.Parallel()
	tr, err := NewTracker(testTrackerConfig(), nil, nil) // HitsToConfirm = 3
	require.NoError(t, err)

	tr.Update([]Detection{detAt(100, 100)}, testDt)
	for i := 1; i <= 2; i++ {
		tr.Update([]Detection{detAt(100, 100)}, testDt)
		active := tr.ActiveTracks()
		require.Len(t, active, 1)
		if i < 2 {
			assert.Equal(t, StateTentative, active[0].State, "match %d", i)
		}
	}

	tr.Update([]Detection{detAt(100, 100)}, testDt)
	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, StateConfirmed, active[0].State)
}

func TestTrackerGhostRetiredImmediately(t *testing.T) {
	t.Parallel()
	tr, err := NewTracker(testTrackerConfig(), nil, nil)
	require.NoError(t, err)

	tr.Update([]Detection{detAt(100, 100)}, testDt)
	res := tr.Update(nil, testDt)

	assert.Equal(t, 1, res.Retired, "never-matched tentative track must retire on its first miss")
	assert.Empty(t, tr.ActiveTracks())

	retired := tr.RetiredTracks()
	require.Len(t, retired, 1)
	assert.Equal(t, StateRetired, retired[0].State)
}

func TestTrackerLostAndRetireThresholds(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.HitsToConfirm = 1
	cfg.LostAfterMisses = 2
	cfg.RetireAfterMisses = 4
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	tr.Update([]Detection{detAt(100, 100)}, testDt)
	tr.Update([]Detection{detAt(100, 100)}, testDt) // confirmed

	// Misses 1..2: still Confirmed (threshold is strictly exceeded).
	tr.Update(nil, testDt)
	tr.Update(nil, testDt)
	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, StateConfirmed, active[0].State)
	assert.Equal(t, 2, active[0].Misses)

	// Miss 3: Lost, still live and matchable.
	tr.Update(nil, testDt)
	active = tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, StateLost, active[0].State)

	// Miss 4: still Lost. Miss 5 exceeds RetireAfterMisses: retired.
	tr.Update(nil, testDt)
	tr.Update(nil, testDt)
	assert.Empty(t, tr.ActiveTracks())
	assert.Equal(t, int64(1), tr.Metrics().RetiredTotal)
}

func TestTrackerLostTrackRecovers(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.HitsToConfirm = 1
	cfg.LostAfterMisses = 1
	cfg.RetireAfterMisses = 10
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	tr.Update([]Detection{detAt(100, 100)}, testDt)
	tr.Update([]Detection{detAt(100, 100)}, testDt) // confirmed
	tr.Update(nil, testDt)
	tr.Update(nil, testDt) // misses=2 > 1: Lost

	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	require.Equal(t, StateLost, active[0].State)

	// A matching detection recovers the same identity.
	tr.Update([]Detection{detAt(100, 100)}, testDt)
	active = tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, StateConfirmed, active[0].State)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, 0, active[0].Misses, "misses reset on any successful match")
	assert.Equal(t, int64(1), tr.Metrics().Fragmentations)
}

func TestTrackerIDsMonotonicNeverReused(t *testing.T) {
	t.Parallel()
	tr, err := NewTracker(testTrackerConfig(), nil, nil)
	require.NoError(t, err)

	tr.Update([]Detection{detAt(100, 100)}, testDt)
	tr.Update(nil, testDt) // ghost retired

	// A new object at the same place gets a fresh id.
	tr.Update([]Detection{detAt(100, 100)}, testDt)
	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].ID)
}

func TestTrackerTwoObjectsKeepIdentities(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.HitsToConfirm = 1
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	tr.Update([]Detection{detAt(100, 100), detAt(500, 100)}, testDt)

	// Both objects drift right; crossing costs stay outside each other's
	// competitive range so identities must hold.
	for i := 1; i <= 10; i++ {
		dx := float64(i) * 3
		tr.Update([]Detection{detAt(100+dx, 100), detAt(500+dx, 100)}, testDt)
	}

	active := tr.ActiveTracks()
	require.Len(t, active, 2)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, int64(2), active[1].ID)
	assert.Less(t, active[0].X, active[1].X, "track 1 stays the left object")
}

func TestTrackerGateForbidsDistantMatch(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.GateDistancePx = 50
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	tr.Update([]Detection{detAt(100, 100)}, testDt)

	// Detection 300px away must not match; the old track misses (and as a
	// never-matched tentative, retires) while a new track is created.
	res := tr.Update([]Detection{detAt(400, 100)}, testDt)
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Retired)
}

func TestTrackerBehaviorOnTracks(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.HitsToConfirm = 1
	cfg.UseKalman = false // passthrough gives exact finite-difference speeds
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	// Stationary object.
	for i := 0; i < 10; i++ {
		tr.Update([]Detection{detAt(200, 200)}, testDt)
	}
	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, BehaviorStationary, active[0].Behavior)
	assert.Greater(t, active[0].DwellFrames, int64(5))

	// Fast object: 10 px per frame at 30fps is 300 px/s, relative speed
	// 300 / diag(10,10) ≈ 21, far above the fast threshold.
	for i := 0; i < 20; i++ {
		tr.Update([]Detection{detAt(200, 200), detAt(400+float64(i)*10, 400)}, testDt)
	}
	active = tr.ActiveTracks()
	require.Len(t, active, 2)
	assert.Equal(t, BehaviorFast, active[1].Behavior)
}

func TestTrackerNearBorderFlag(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	tr.Update([]Detection{detAt(20, 360)}, testDt) // inside 10% left margin of 1280
	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.True(t, active[0].NearBorder)
}

func TestTrackerHeatmapAccumulates(t *testing.T) {
	t.Parallel()
	heat := NewHeatmapAccumulator(1280, 720, 8, 0, false)
	cfg := testTrackerConfig()
	tr, err := NewTracker(cfg, heat, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		tr.Update([]Detection{detAt(100, 100)}, testDt)
	}
	assert.Equal(t, int64(5), heat.Frames())
	assert.InDelta(t, 5.0, heat.RawCell(12, 12), 1e-9)
}

func TestTrackerHistoryBounded(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.MaxHistory = 10
	tr, err := NewTracker(cfg, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		tr.Update([]Detection{detAt(100+float64(i), 100)}, testDt)
	}
	snap, ok := tr.GetTrack(1)
	require.True(t, ok)
	assert.Len(t, snap.History, 10)
}

func TestTrackerEmptyFramesNoop(t *testing.T) {
	t.Parallel()
	tr, err := NewTracker(testTrackerConfig(), nil, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		res := tr.Update(nil, testDt)
		assert.Zero(t, res.Matched)
		assert.Zero(t, res.Created)
	}
	assert.Empty(t, tr.ActiveTracks())
	assert.Equal(t, int64(5), tr.Metrics().FramesProcessed)
}

func TestTrackerRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.GateDistancePx = -1
	_, err := NewTracker(cfg, nil, nil)
	assert.Error(t, err)
}

func TestTrackerSizeClassifierApplied(t *testing.T) {
	t.Parallel()
	cfg := testTrackerConfig()
	cfg.HitsToConfirm = 1
	tr, err := NewTracker(cfg, nil, NewSizeClassifier())
	require.NoError(t, err)

	// Small slow box observed long enough to classify.
	for i := 0; i < 10; i++ {
		tr.Update([]Detection{detAt(300, 300)}, testDt)
	}
	active := tr.ActiveTracks()
	require.Len(t, active, 1)
	assert.NotEmpty(t, active[0].Class)
	assert.Greater(t, active[0].ClassConfidence, 0.0)
}
