package track

// TrackSnapshot is an immutable copy of a track's observable state, safe to
// hand to API handlers and persistence without holding the tracker lock.
type TrackSnapshot struct {
	ID    int64      `json:"id"`
	Label string     `json:"label"`
	State TrackState `json:"state"`

	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	BoxW float64 `json:"box_w"`
	BoxH float64 `json:"box_h"`

	Hits             int   `json:"hits"`
	Misses           int   `json:"misses"`
	AgeFrames        int64 `json:"age_frames"`
	FirstFrame       int64 `json:"first_frame"`
	LastSeenFrame    int64 `json:"last_seen_frame"`
	ObservationCount int64 `json:"observations"`

	Behavior   BehaviorLabel `json:"behavior"`
	NearBorder bool          `json:"near_border"`

	Class           string  `json:"class,omitempty"`
	ClassConfidence float64 `json:"class_confidence,omitempty"`

	SmoothedSpeed float64 `json:"smoothed_speed"`
	RelSpeed      float64 `json:"rel_speed"`
	AvgSpeed      float64 `json:"avg_speed"`
	PeakSpeed     float64 `json:"peak_speed"`
	PathLengthPx  float64 `json:"path_length_px"`
	DwellFrames   int64   `json:"dwell_frames"`

	History []TrackPoint `json:"history,omitempty"`
}

func snapshotOf(trk *TrackedObject, withHistory bool) TrackSnapshot {
	x, y := trk.model.Position()
	vx, vy := trk.model.Velocity()
	s := TrackSnapshot{
		ID:               trk.ID,
		Label:            trk.Label,
		State:            trk.State,
		X:                x,
		Y:                y,
		VX:               vx,
		VY:               vy,
		BoxW:             trk.BoxW,
		BoxH:             trk.BoxH,
		Hits:             trk.Hits,
		Misses:           trk.Misses,
		AgeFrames:        trk.AgeFrames,
		FirstFrame:       trk.FirstFrame,
		LastSeenFrame:    trk.LastSeenFrame,
		ObservationCount: trk.ObservationCount,
		Behavior:         trk.Behavior,
		NearBorder:       trk.NearBorder,
		Class:            trk.Class,
		ClassConfidence:  trk.ClassConfidence,
		SmoothedSpeed:    trk.SmoothedSpeed,
		RelSpeed:         trk.RelSpeed,
		AvgSpeed:         trk.AvgSpeed,
		PeakSpeed:        trk.PeakSpeed,
		PathLengthPx:     trk.PathLengthPx,
		DwellFrames:      trk.DwellFrames,
	}
	if withHistory {
		s.History = make([]TrackPoint, len(trk.History))
		copy(s.History, trk.History)
	}
	return s
}

// ActiveTracks returns deep copies of every live track, ascending ID order,
// without history trails.
func (t *Tracker) ActiveTracks() []TrackSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrackSnapshot, 0, len(t.tracks))
	for _, trk := range t.tracks {
		out = append(out, snapshotOf(trk, false))
	}
	return out
}

// ActiveTrails returns live tracks including their bounded history trails.
func (t *Tracker) ActiveTrails() []TrackSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrackSnapshot, 0, len(t.tracks))
	for _, trk := range t.tracks {
		out = append(out, snapshotOf(trk, true))
	}
	return out
}

// GetTrack returns a deep copy of one track (live or retired) with its
// history. The second result is false when the id is unknown.
func (t *Tracker) GetTrack(id int64) (TrackSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, trk := range t.tracks {
		if trk.ID == id {
			return snapshotOf(trk, true), true
		}
	}
	for _, trk := range t.retired {
		if trk.ID == id {
			return snapshotOf(trk, true), true
		}
	}
	return TrackSnapshot{}, false
}

// RetiredTracks returns deep copies of every retired track, without trails.
func (t *Tracker) RetiredTracks() []TrackSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrackSnapshot, 0, len(t.retired))
	for _, trk := range t.retired {
		out = append(out, snapshotOf(trk, false))
	}
	return out
}
