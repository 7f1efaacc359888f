package session

import (
	"math"
	"testing"
	"time"

	"github.com/wildsight-data/wildsight/internal/timeutil"
)

func TestStatsEmpty(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	s := NewStats(clock)

	snap := s.Snapshot()
	if snap.Frames != 0 {
		t.Errorf("frames: got %d, want 0", snap.Frames)
	}
	if snap.AvgFPS != 0 || snap.RollingFPS != 0 {
		t.Errorf("fps on empty stats: got avg=%v rolling=%v, want 0", snap.AvgFPS, snap.RollingFPS)
	}
}

func TestStatsAvgFPS(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	s := NewStats(clock)

	// 30 frames over 1 second.
	for i := 0; i < 30; i++ {
		clock.Advance(time.Second / 30)
		s.RecordFrame()
	}

	snap := s.Snapshot()
	if snap.Frames != 30 {
		t.Errorf("frames: got %d, want 30", snap.Frames)
	}
	if math.Abs(snap.ElapsedSeconds-1.0) > 1e-6 {
		t.Errorf("elapsed: got %v, want 1.0", snap.ElapsedSeconds)
	}
	if math.Abs(snap.AvgFPS-30.0) > 1e-6 {
		t.Errorf("avg fps: got %v, want 30", snap.AvgFPS)
	}
}

func TestStatsRollingFPSTracksRecentRate(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	s := NewStats(clock)

	// Slow start at 10 fps, then 50 fps for more than the rolling window.
	for i := 0; i < 20; i++ {
		clock.Advance(100 * time.Millisecond)
		s.RecordFrame()
	}
	for i := 0; i < 2*rollingWindow; i++ {
		clock.Advance(20 * time.Millisecond)
		s.RecordFrame()
	}

	snap := s.Snapshot()
	if math.Abs(snap.RollingFPS-50.0) > 0.5 {
		t.Errorf("rolling fps: got %v, want ~50", snap.RollingFPS)
	}
	if snap.AvgFPS >= 50.0 {
		t.Errorf("avg fps should lag behind rolling, got %v", snap.AvgFPS)
	}
}

func TestStatsSingleFrameNoRolling(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	s := NewStats(clock)

	clock.Advance(33 * time.Millisecond)
	s.RecordFrame()

	if snap := s.Snapshot(); snap.RollingFPS != 0 {
		t.Errorf("rolling fps with one frame: got %v, want 0", snap.RollingFPS)
	}
}
