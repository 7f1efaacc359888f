// Package sqlite persists tracking sessions, tracks, and per-frame
// observations to the shared sqlite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/wildsight-data/wildsight/internal/track"
)

// SessionRecord is one monitoring run.
type SessionRecord struct {
	SessionID       string
	StartedAt       time.Time
	EndedAt         time.Time
	Source          string
	FrameW, FrameH  float64
	FramesProcessed int64
	AvgFPS          float64
	ParamsJSON      string
}

// Observation is one per-frame sample of a track's state.
type Observation struct {
	SessionID string
	TrackID   int64
	Frame     int64
	X, Y      float64
	VX, VY    float64
	BoxW      float64
	BoxH      float64
	Behavior  string
}

// TrackStore persists session and track data. All methods are safe for use
// from a single writer goroutine; the DB wrapper serialises connections.
type TrackStore struct {
	db *sql.DB
}

// NewTrackStore creates a store over an already-migrated database.
func NewTrackStore(db *sql.DB) *TrackStore {
	return &TrackStore{db: db}
}

// InsertSession records the start of a session.
func (s *TrackStore) InsertSession(rec *SessionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (
			session_id, started_unix_nanos, source,
			frame_width, frame_height, params_json
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.SessionID,
		rec.StartedAt.UnixNano(),
		rec.Source,
		rec.FrameW,
		rec.FrameH,
		rec.ParamsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.SessionID, err)
	}
	return nil
}

// FinishSession stamps the session's end time and final frame statistics.
func (s *TrackStore) FinishSession(sessionID string, endedAt time.Time, frames int64, avgFPS float64) error {
	res, err := s.db.Exec(`
		UPDATE sessions
		SET ended_unix_nanos = ?, frames_processed = ?, avg_fps = ?
		WHERE session_id = ?
	`, endedAt.UnixNano(), frames, avgFPS, sessionID)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("finish session %s: not found", sessionID)
	}
	return nil
}

// GetSession loads one session record.
func (s *TrackStore) GetSession(sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	var started int64
	var ended sql.NullInt64
	var source, params sql.NullString
	err := s.db.QueryRow(`
		SELECT session_id, started_unix_nanos, ended_unix_nanos, source,
		       frame_width, frame_height, frames_processed, avg_fps, params_json
		FROM sessions WHERE session_id = ?
	`, sessionID).Scan(
		&rec.SessionID, &started, &ended, &source,
		&rec.FrameW, &rec.FrameH, &rec.FramesProcessed, &rec.AvgFPS, &params,
	)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	rec.StartedAt = time.Unix(0, started)
	if ended.Valid {
		rec.EndedAt = time.Unix(0, ended.Int64)
	}
	rec.Source = source.String
	rec.ParamsJSON = params.String
	return &rec, nil
}

// UpsertTrack writes a track summary row, updating in place on conflict so
// repeated flushes of a live track never cascade-delete its observations.
func (s *TrackStore) UpsertTrack(sessionID string, sum track.TrackSummary) error {
	_, err := s.db.Exec(`
		INSERT INTO tracks (
			session_id, track_id, label, object_class, class_confidence,
			track_state, behavior, first_frame, last_seen_frame,
			observation_count, dwell_frames, path_length_px,
			avg_speed_px_s, peak_speed_px_s,
			p50_speed_px_s, p85_speed_px_s, p95_speed_px_s
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, track_id) DO UPDATE SET
			label = excluded.label,
			object_class = excluded.object_class,
			class_confidence = excluded.class_confidence,
			track_state = excluded.track_state,
			behavior = excluded.behavior,
			last_seen_frame = excluded.last_seen_frame,
			observation_count = excluded.observation_count,
			dwell_frames = excluded.dwell_frames,
			path_length_px = excluded.path_length_px,
			avg_speed_px_s = excluded.avg_speed_px_s,
			peak_speed_px_s = excluded.peak_speed_px_s,
			p50_speed_px_s = excluded.p50_speed_px_s,
			p85_speed_px_s = excluded.p85_speed_px_s,
			p95_speed_px_s = excluded.p95_speed_px_s
	`,
		sessionID, sum.ID, sum.Label, sum.Class, sum.ClassConfidence,
		string(sum.State), string(sum.Behavior), sum.FirstFrame, sum.LastSeenFrame,
		sum.ObservationCount, sum.DwellFrames, sum.PathLengthPx,
		sum.AvgSpeed, sum.PeakSpeed,
		sum.P50Speed, sum.P85Speed, sum.P95Speed,
	)
	if err != nil {
		return fmt.Errorf("upsert track %d: %w", sum.ID, err)
	}
	return nil
}

// InsertObservation appends one per-frame observation.
func (s *TrackStore) InsertObservation(obs *Observation) error {
	_, err := s.db.Exec(`
		INSERT INTO track_obs (
			session_id, track_id, frame, x, y, vx, vy, box_w, box_h, behavior
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obs.SessionID, obs.TrackID, obs.Frame,
		obs.X, obs.Y, obs.VX, obs.VY,
		obs.BoxW, obs.BoxH, obs.Behavior,
	)
	if err != nil {
		return fmt.Errorf("insert observation for track %d frame %d: %w", obs.TrackID, obs.Frame, err)
	}
	return nil
}

// GetTrack loads one track summary row.
func (s *TrackStore) GetTrack(sessionID string, trackID int64) (*track.TrackSummary, error) {
	row := s.db.QueryRow(`
		SELECT track_id, label, object_class, class_confidence, track_state,
		       behavior, first_frame, last_seen_frame, observation_count,
		       dwell_frames, path_length_px, avg_speed_px_s, peak_speed_px_s,
		       p50_speed_px_s, p85_speed_px_s, p95_speed_px_s
		FROM tracks WHERE session_id = ? AND track_id = ?
	`, sessionID, trackID)
	sum, err := scanTrackSummary(row)
	if err != nil {
		return nil, fmt.Errorf("get track %d: %w", trackID, err)
	}
	return sum, nil
}

// ListTracks returns every track row for a session, optionally filtered by
// lifecycle state, newest first.
func (s *TrackStore) ListTracks(sessionID string, state string, limit int) ([]*track.TrackSummary, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT track_id, label, object_class, class_confidence, track_state,
		       behavior, first_frame, last_seen_frame, observation_count,
		       dwell_frames, path_length_px, avg_speed_px_s, peak_speed_px_s,
		       p50_speed_px_s, p85_speed_px_s, p95_speed_px_s
		FROM tracks WHERE session_id = ?
	`
	args := []interface{}{sessionID}
	if state != "" {
		query += " AND track_state = ?"
		args = append(args, state)
	}
	query += " ORDER BY track_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*track.TrackSummary
	for rows.Next() {
		sum, err := scanTrackSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetObservations returns a track's observations in frame order, capped at
// limit.
func (s *TrackStore) GetObservations(sessionID string, trackID int64, limit int) ([]*Observation, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(`
		SELECT session_id, track_id, frame, x, y, vx, vy, box_w, box_h, behavior
		FROM track_obs
		WHERE session_id = ? AND track_id = ?
		ORDER BY frame ASC LIMIT ?
	`, sessionID, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("get observations for track %d: %w", trackID, err)
	}
	defer rows.Close()

	var out []*Observation
	for rows.Next() {
		var obs Observation
		var behavior sql.NullString
		if err := rows.Scan(
			&obs.SessionID, &obs.TrackID, &obs.Frame,
			&obs.X, &obs.Y, &obs.VX, &obs.VY,
			&obs.BoxW, &obs.BoxH, &behavior,
		); err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		obs.Behavior = behavior.String
		out = append(out, &obs)
	}
	return out, rows.Err()
}

// ClassCounts aggregates tracks per object class for one session.
func (s *TrackStore) ClassCounts(sessionID string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(object_class, ''), COUNT(*)
		FROM tracks WHERE session_id = ?
		GROUP BY object_class
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("class counts for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var class string
		var n int64
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scan class count: %w", err)
		}
		counts[class] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrackSummary(row rowScanner) (*track.TrackSummary, error) {
	var sum track.TrackSummary
	var label, class, state, behavior sql.NullString
	var classConf sql.NullFloat64
	err := row.Scan(
		&sum.ID, &label, &class, &classConf, &state,
		&behavior, &sum.FirstFrame, &sum.LastSeenFrame, &sum.ObservationCount,
		&sum.DwellFrames, &sum.PathLengthPx, &sum.AvgSpeed, &sum.PeakSpeed,
		&sum.P50Speed, &sum.P85Speed, &sum.P95Speed,
	)
	if err != nil {
		return nil, err
	}
	sum.Label = label.String
	sum.Class = class.String
	sum.ClassConfidence = classConf.Float64
	sum.State = track.TrackState(state.String)
	sum.Behavior = track.BehaviorLabel(behavior.String)
	return &sum, nil
}
