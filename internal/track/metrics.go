package track

// TrackerMetrics exposes cumulative tracker counters for the monitor API
// and end-of-session reporting.
type TrackerMetrics struct {
	FramesProcessed int64 `json:"frames_processed"`
	LiveTracks      int   `json:"live_tracks"`
	TentativeTracks int   `json:"tentative_tracks"`
	ConfirmedTracks int   `json:"confirmed_tracks"`
	LostTracks      int   `json:"lost_tracks"`

	CreatedTotal   int64 `json:"created_total"`
	ConfirmedTotal int64 `json:"confirmed_total"`
	RetiredTotal   int64 `json:"retired_total"`

	// SkippedCorrections counts matched frames where the Kalman update
	// had to be skipped on a singular innovation covariance.
	SkippedCorrections int64 `json:"skipped_corrections"`
	// Fragmentations counts Lost tracks that later re-matched; a high
	// value relative to ConfirmedTotal suggests the gate or miss budgets
	// need retuning.
	Fragmentations int64 `json:"fragmentations"`
}

// Metrics returns a point-in-time copy of the tracker's counters.
func (t *Tracker) Metrics() TrackerMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := TrackerMetrics{
		FramesProcessed:    t.frameIndex,
		LiveTracks:         len(t.tracks),
		CreatedTotal:       t.createdTotal,
		ConfirmedTotal:     t.confirmedTotal,
		RetiredTotal:       t.retiredTotal,
		SkippedCorrections: t.skippedUpdates,
		Fragmentations:     t.fragmentations,
	}
	for _, trk := range t.tracks {
		switch trk.State {
		case StateTentative:
			m.TentativeTracks++
		case StateConfirmed:
			m.ConfirmedTracks++
		case StateLost:
			m.LostTracks++
		}
	}
	return m
}
