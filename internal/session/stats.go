package session

import (
	"sync"
	"time"

	"github.com/wildsight-data/wildsight/internal/timeutil"
)

// rollingWindow is how many recent frames the rolling fps estimate spans.
const rollingWindow = 30

// Stats tracks frame throughput for a session using an injected Clock so
// tests can drive time explicitly.
type Stats struct {
	mu     sync.Mutex
	clock  timeutil.Clock
	start  time.Time
	frames int64
	recent []time.Time
}

// StatsSnapshot is a point-in-time view of session throughput.
type StatsSnapshot struct {
	Frames         int64   `json:"frames"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	AvgFPS         float64 `json:"avg_fps"`
	RollingFPS     float64 `json:"rolling_fps"`
}

// NewStats creates a Stats anchored at the clock's current time.
func NewStats(clock timeutil.Clock) *Stats {
	return &Stats{clock: clock, start: clock.Now()}
}

// RecordFrame counts one processed frame.
func (s *Stats) RecordFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.recent = append(s.recent, s.clock.Now())
	if len(s.recent) > rollingWindow {
		s.recent = s.recent[len(s.recent)-rollingWindow:]
	}
}

// Snapshot returns the current throughput numbers.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{Frames: s.frames}
	elapsed := s.clock.Since(s.start).Seconds()
	snap.ElapsedSeconds = elapsed
	if elapsed > 0 {
		snap.AvgFPS = float64(s.frames) / elapsed
	}
	if n := len(s.recent); n >= 2 {
		span := s.recent[n-1].Sub(s.recent[0]).Seconds()
		if span > 0 {
			snap.RollingFPS = float64(n-1) / span
		}
	}
	return snap
}
