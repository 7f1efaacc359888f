package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildsight-data/wildsight/internal/config"
	"github.com/wildsight-data/wildsight/internal/db"
	sqlitestore "github.com/wildsight-data/wildsight/internal/storage/sqlite"
	"github.com/wildsight-data/wildsight/internal/timeutil"
	"github.com/wildsight-data/wildsight/internal/track"
)

const migrationsDir = "../../db/migrations"

const frameDt = 1.0 / 30

func ptrF(v float64) *float64 { return &v }
func ptrB(v bool) *bool       { return &v }

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func detAt(cx, cy float64) track.Detection {
	return track.Detection{
		XMin: cx - 5, YMin: cy - 5, XMax: cx + 5, YMax: cy + 5,
		Label: "deer", Confidence: 0.9,
	}
}

func newTestStore(t *testing.T) *sqlitestore.TrackStore {
	t.Helper()
	dbh, err := db.NewDB(filepath.Join(t.TempDir(), "session_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	require.NoError(t, dbh.MigrateUp(migrationsDir))
	return sqlitestore.NewTrackStore(dbh.DB)
}

func TestNewSessionDefaults(t *testing.T) {
	s, err := New(nil, Options{Source: "test"})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID())
	assert.NotNil(t, s.Tracker())
	assert.NotNil(t, s.Heatmap())
	assert.Equal(t, int64(0), s.Stats().Frames)
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	cfg.GateDistancePx = ptrF(-1)

	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestProcessFrameAdvancesTrackerAndStats(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	s, err := New(nil, Options{Clock: clock})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second / 30)
		res, err := s.ProcessFrame([]track.Detection{detAt(100+float64(i)*3, 200)}, frameDt)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), res.Frame)
		assert.Equal(t, 1, res.DetectionsKept)
		assert.Equal(t, 1, res.LiveTracks)
	}

	stats := s.Stats()
	assert.Equal(t, int64(5), stats.Frames)
	assert.InDelta(t, 30.0, stats.AvgFPS, 0.5)

	active := s.Tracker().ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, track.StateConfirmed, active[0].State)
}

func TestProcessFrameAfterFinishFails(t *testing.T) {
	s, err := New(nil, Options{})
	require.NoError(t, err)

	_, err = s.ProcessFrame([]track.Detection{detAt(100, 100)}, frameDt)
	require.NoError(t, err)
	require.NoError(t, s.Finish())

	_, err = s.ProcessFrame([]track.Detection{detAt(100, 100)}, frameDt)
	assert.Error(t, err)

	// Finish is idempotent.
	assert.NoError(t, s.Finish())
}

func TestSessionPersistsToStore(t *testing.T) {
	store := newTestStore(t)
	clock := timeutil.NewMockClock(time.Unix(1000, 0))

	s, err := New(nil, Options{Source: "replay:test.jsonl", Store: store, Clock: clock})
	require.NoError(t, err)

	rec, err := store.GetSession(s.ID())
	require.NoError(t, err)
	assert.Equal(t, "replay:test.jsonl", rec.Source)
	assert.Equal(t, 1280.0, rec.FrameW)
	assert.NotEmpty(t, rec.ParamsJSON)

	for i := 0; i < 10; i++ {
		clock.Advance(time.Second / 30)
		_, err := s.ProcessFrame([]track.Detection{detAt(100+float64(i)*3, 200)}, frameDt)
		require.NoError(t, err)
	}
	require.NoError(t, s.Finish())

	rec, err = store.GetSession(s.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.FramesProcessed)
	assert.InDelta(t, 30.0, rec.AvgFPS, 0.5)
	assert.False(t, rec.EndedAt.IsZero())

	tracks, err := store.ListTracks(s.ID(), "", 0)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, int64(10), tracks[0].ObservationCount)

	obs, err := store.GetObservations(s.ID(), tracks[0].ID, 0)
	require.NoError(t, err)
	assert.Len(t, obs, 10)
	assert.Equal(t, int64(1), obs[0].Frame)
}

func TestSessionWritesFrameLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.csv")
	log, err := NewFrameLog(path)
	require.NoError(t, err)

	s, err := New(nil, Options{FrameLog: log})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.ProcessFrame([]track.Detection{detAt(100, 100)}, frameDt)
		require.NoError(t, err)
	}
	require.NoError(t, s.Finish())

	data, err := readLines(path)
	require.NoError(t, err)
	assert.Len(t, data, 4) // header + 3 frames
}

func TestTrackerConfigFromTuning(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	cfg.GateDistancePx = ptrF(42)
	cfg.UseKalman = ptrB(false)
	cfg.MinConfidence = map[string]float64{"deer": 0.5}

	tc := TrackerConfigFromTuning(cfg)
	assert.Equal(t, 42.0, tc.GateDistancePx)
	assert.False(t, tc.UseKalman)
	assert.Equal(t, 0.5, tc.MinConfidence["deer"])
	assert.Equal(t, 1280.0, tc.FrameW)
	assert.NoError(t, tc.Validate())
}
