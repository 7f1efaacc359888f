package session

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// FrameLog appends one CSV row per processed frame: frame index, detection
// counts, live tracks, and throughput. Intended for offline tuning of gate
// and lifecycle parameters.
type FrameLog struct {
	f *os.File
	w *csv.Writer
}

// NewFrameLog creates (or truncates) a frame log at path and writes the
// header row.
func NewFrameLog(path string) (*FrameLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create frame log %q: %w", path, err)
	}
	w := csv.NewWriter(f)
	header := []string{
		"frame", "detections_in", "detections_kept", "matched",
		"unmatched_tracks", "unmatched_detections", "created", "retired",
		"live_tracks", "elapsed_s", "avg_fps",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write frame log header: %w", err)
	}
	return &FrameLog{f: f, w: w}, nil
}

// Record appends one frame row.
func (l *FrameLog) Record(res FrameResult, stats StatsSnapshot) error {
	row := []string{
		strconv.FormatInt(res.Frame, 10),
		strconv.Itoa(res.DetectionsIn),
		strconv.Itoa(res.DetectionsKept),
		strconv.Itoa(res.Matched),
		strconv.Itoa(res.UnmatchedTracks),
		strconv.Itoa(res.UnmatchedDetections),
		strconv.Itoa(res.Created),
		strconv.Itoa(res.Retired),
		strconv.Itoa(res.LiveTracks),
		strconv.FormatFloat(stats.ElapsedSeconds, 'f', 3, 64),
		strconv.FormatFloat(stats.AvgFPS, 'f', 2, 64),
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("write frame log row %d: %w", res.Frame, err)
	}
	return nil
}

// Close flushes and closes the log.
func (l *FrameLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return fmt.Errorf("flush frame log: %w", err)
	}
	return l.f.Close()
}
