package track

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TrackSummary condenses one finished (or still live) track into the
// per-track report row exported at session end.
type TrackSummary struct {
	ID               int64         `json:"id"`
	Label            string        `json:"label"`
	Class            string        `json:"class"`
	ClassConfidence  float64       `json:"class_confidence"`
	State            TrackState    `json:"state"`
	FirstFrame       int64         `json:"first_frame"`
	LastSeenFrame    int64         `json:"last_seen_frame"`
	ObservationCount int64         `json:"observations"`
	DwellFrames      int64         `json:"dwell_frames"`
	PathLengthPx     float64       `json:"path_length_px"`
	AvgSpeed         float64       `json:"avg_speed_px_s"`
	PeakSpeed        float64       `json:"peak_speed_px_s"`
	P50Speed         float64       `json:"p50_speed_px_s"`
	P85Speed         float64       `json:"p85_speed_px_s"`
	P95Speed         float64       `json:"p95_speed_px_s"`
	Behavior         BehaviorLabel `json:"behavior"`
}

// SpeedPercentiles returns the 50th, 85th and 95th percentile of the given
// speed samples. An empty input returns zeros.
func SpeedPercentiles(speeds []float64) (p50, p85, p95 float64) {
	if len(speeds) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(speeds))
	copy(sorted, speeds)
	sort.Float64s(sorted)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p85 = stat.Quantile(0.85, stat.Empirical, sorted, nil)
	p95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return p50, p85, p95
}

func summarize(trk *TrackedObject) TrackSummary {
	p50, p85, p95 := SpeedPercentiles(trk.speeds)
	return TrackSummary{
		ID:               trk.ID,
		Label:            trk.Label,
		Class:            trk.Class,
		ClassConfidence:  trk.ClassConfidence,
		State:            trk.State,
		FirstFrame:       trk.FirstFrame,
		LastSeenFrame:    trk.LastSeenFrame,
		ObservationCount: trk.ObservationCount,
		DwellFrames:      trk.DwellFrames,
		PathLengthPx:     trk.PathLengthPx,
		AvgSpeed:         trk.AvgSpeed,
		PeakSpeed:        trk.PeakSpeed,
		P50Speed:         p50,
		P85Speed:         p85,
		P95Speed:         p95,
		Behavior:         trk.Behavior,
	}
}

// Summaries reports every track seen this session, retired first then live,
// each group in ascending ID order.
func (t *Tracker) Summaries() []TrackSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrackSummary, 0, len(t.retired)+len(t.tracks))
	for _, trk := range t.retired {
		out = append(out, summarize(trk))
	}
	for _, trk := range t.tracks {
		out = append(out, summarize(trk))
	}
	return out
}

// WriteSummariesCSV writes summaries as CSV. When fps > 0 two derived
// columns convert frame counts to seconds.
func WriteSummariesCSV(w io.Writer, summaries []TrackSummary, fps float64) error {
	cw := csv.NewWriter(w)

	header := []string{
		"id", "label", "class", "class_confidence", "state",
		"first_frame", "last_seen_frame", "observations", "dwell_frames",
		"path_length_px", "avg_speed_px_s", "peak_speed_px_s",
		"p50_speed_px_s", "p85_speed_px_s", "p95_speed_px_s", "behavior",
	}
	if fps > 0 {
		header = append(header, "duration_s", "dwell_s")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			fmt.Sprintf("%d", s.ID),
			s.Label,
			s.Class,
			fmt.Sprintf("%.2f", s.ClassConfidence),
			string(s.State),
			fmt.Sprintf("%d", s.FirstFrame),
			fmt.Sprintf("%d", s.LastSeenFrame),
			fmt.Sprintf("%d", s.ObservationCount),
			fmt.Sprintf("%d", s.DwellFrames),
			fmt.Sprintf("%.1f", s.PathLengthPx),
			fmt.Sprintf("%.2f", s.AvgSpeed),
			fmt.Sprintf("%.2f", s.PeakSpeed),
			fmt.Sprintf("%.2f", s.P50Speed),
			fmt.Sprintf("%.2f", s.P85Speed),
			fmt.Sprintf("%.2f", s.P95Speed),
			string(s.Behavior),
		}
		if fps > 0 {
			duration := float64(s.LastSeenFrame-s.FirstFrame+1) / fps
			dwell := float64(s.DwellFrames) / fps
			row = append(row, fmt.Sprintf("%.2f", duration), fmt.Sprintf("%.2f", dwell))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for track %d: %w", s.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
