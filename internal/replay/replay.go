// Package replay reads and writes JSONL detection logs. The detector is an
// external system; a replay file stands in for its live feed, one frame per
// line, so sessions can be re-run and tested offline.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wildsight-data/wildsight/internal/track"
)

// BoxRecord is one detection on the wire.
type BoxRecord struct {
	XMin       float64 `json:"x_min"`
	YMin       float64 `json:"y_min"`
	XMax       float64 `json:"x_max"`
	YMax       float64 `json:"y_max"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FrameRecord is one line of a detection log: the frame index, the elapsed
// time since the previous frame, and the detector output for that frame.
type FrameRecord struct {
	Frame      int64       `json:"frame"`
	Dt         float64     `json:"dt"`
	Detections []BoxRecord `json:"detections"`
}

// ToDetections converts the wire records into tracker detections.
func (r FrameRecord) ToDetections() []track.Detection {
	dets := make([]track.Detection, 0, len(r.Detections))
	for _, b := range r.Detections {
		dets = append(dets, track.Detection{
			XMin: b.XMin, YMin: b.YMin, XMax: b.XMax, YMax: b.YMax,
			Label: b.Label, Confidence: b.Confidence,
		})
	}
	return dets
}

// Reader streams FrameRecords from a JSONL detection log.
type Reader struct {
	f       *os.File
	scanner *bufio.Scanner
	line    int
}

// NewReader opens a detection log for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detection log %q: %w", path, err)
	}
	scanner := bufio.NewScanner(f)
	// Crowded frames can exceed the default line limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{f: f, scanner: scanner}, nil
}

// Next returns the next frame, or io.EOF after the last one. Blank lines
// are skipped; a malformed line is an error naming its line number.
func (r *Reader) Next() (*FrameRecord, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec FrameRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("detection log line %d: %w", r.line, err)
		}
		return &rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read detection log: %w", err)
	}
	return nil, io.EOF
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Writer appends FrameRecords to a JSONL detection log.
type Writer struct {
	w   *bufio.Writer
	f   *os.File
	enc *json.Encoder
}

// NewWriter creates (or truncates) a detection log at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create detection log %q: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	return &Writer{w: bw, f: f, enc: json.NewEncoder(bw)}, nil
}

// Write appends one frame record as a single JSON line.
func (w *Writer) Write(rec *FrameRecord) error {
	if rec == nil {
		return errors.New("nil frame record")
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write frame %d: %w", rec.Frame, err)
	}
	return nil
}

// Close flushes and closes the log.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush detection log: %w", err)
	}
	return w.f.Close()
}
