// Package session wires the tracker, behavior analysis, heatmap, stats,
// and persistence into one frame-sequential pipeline.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wildsight-data/wildsight/internal/config"
	"github.com/wildsight-data/wildsight/internal/monitoring"
	sqlitestore "github.com/wildsight-data/wildsight/internal/storage/sqlite"
	"github.com/wildsight-data/wildsight/internal/timeutil"
	"github.com/wildsight-data/wildsight/internal/track"
)

// flushEveryFrames is how often live track rows are re-upserted so a crash
// loses at most this many frames of summary data.
const flushEveryFrames = 300

// FrameResult extends the tracker's per-frame bookkeeping with the live
// track count after the update.
type FrameResult struct {
	Frame               int64
	DetectionsIn        int
	DetectionsKept      int
	Matched             int
	UnmatchedTracks     int
	UnmatchedDetections int
	Created             int
	Retired             int
	LiveTracks          int
}

// Options configures optional session wiring. Zero values disable each.
type Options struct {
	Source   string               // human-readable input description
	Store    *sqlitestore.TrackStore // nil disables persistence
	FrameLog *FrameLog            // nil disables the per-frame CSV log
	Clock    timeutil.Clock       // nil uses the real clock
}

// Session owns one monitoring run end to end. ProcessFrame must be called
// frame-sequentially by a single caller; all read accessors are safe for
// concurrent use by the HTTP layer.
type Session struct {
	mu sync.Mutex

	id      string
	source  string
	tuning  *config.TuningConfig
	tracker *track.Tracker
	heatmap *track.HeatmapAccumulator
	stats   *Stats
	store   *sqlitestore.TrackStore
	log     *FrameLog
	clock   timeutil.Clock

	finished bool
}

// TrackerConfigFromTuning maps the JSON tuning schema onto the tracker's
// validated config.
func TrackerConfigFromTuning(t *config.TuningConfig) track.TrackerConfig {
	return track.TrackerConfig{
		FrameW:    t.GetFrameWidth(),
		FrameH:    t.GetFrameHeight(),
		UseKalman: t.GetUseKalman(),
		Estimator: track.EstimatorConfig{
			ProcessNoisePos:  t.GetProcessNoisePos(),
			ProcessNoiseVel:  t.GetProcessNoiseVel(),
			MeasurementNoise: t.GetMeasurementNoise(),
			InitialVariance:  t.GetInitialVariance(),
			MaxVariance:      t.GetMaxVariance(),
		},
		Metric:            track.CostMetric(t.GetCostMetric()),
		GateDistancePx:    t.GetGateDistancePx(),
		HitsToConfirm:     t.GetHitsToConfirm(),
		LostAfterMisses:   t.GetLostAfterMisses(),
		RetireAfterMisses: t.GetRetireAfterMisses(),
		MaxHistory:        t.GetMaxHistory(),
		SlowMinRel:        t.GetSlowMinRel(),
		FastMinRel:        t.GetFastMinRel(),
		SpeedSmoothing:    t.GetSpeedSmoothing(),
		SizeSmoothing:     t.GetSizeSmoothing(),
		BorderMarginRatio: t.GetBorderMarginRatio(),
		MinConfidence:     t.MinConfidence,
	}
}

// New builds a session from a validated tuning config. Configuration
// errors are fatal to session start and returned here.
func New(tuning *config.TuningConfig, opts Options) (*Session, error) {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.NewRealClock()
	}

	heatmap := track.NewHeatmapAccumulator(
		tuning.GetFrameWidth(), tuning.GetFrameHeight(),
		tuning.GetHeatmapBinPx(), tuning.GetHeatmapDecay(), tuning.GetHeatmapKernel(),
	)

	tracker, err := track.NewTracker(TrackerConfigFromTuning(tuning), heatmap, track.NewSizeClassifier())
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:      uuid.NewString(),
		source:  opts.Source,
		tuning:  tuning,
		tracker: tracker,
		heatmap: heatmap,
		stats:   NewStats(clock),
		store:   opts.Store,
		log:     opts.FrameLog,
		clock:   clock,
	}

	if s.store != nil {
		paramsJSON, err := json.Marshal(tuning)
		if err != nil {
			return nil, fmt.Errorf("marshal session params: %w", err)
		}
		err = s.store.InsertSession(&sqlitestore.SessionRecord{
			SessionID:  s.id,
			StartedAt:  clock.Now(),
			Source:     opts.Source,
			FrameW:     tuning.GetFrameWidth(),
			FrameH:     tuning.GetFrameHeight(),
			ParamsJSON: string(paramsJSON),
		})
		if err != nil {
			return nil, err
		}
	}

	monitoring.Logf("session %s started (source=%q kalman=%v)", s.id, opts.Source, tuning.GetUseKalman())
	return s, nil
}

// ID returns the session's uuid.
func (s *Session) ID() string { return s.id }

// Tracker exposes the underlying tracker for the HTTP layer's snapshot
// accessors.
func (s *Session) Tracker() *track.Tracker { return s.tracker }

// Heatmap exposes the session heatmap accumulator.
func (s *Session) Heatmap() *track.HeatmapAccumulator { return s.heatmap }

// Stats returns the current throughput snapshot.
func (s *Session) Stats() StatsSnapshot { return s.stats.Snapshot() }

// Params returns the tuning config the session runs with.
func (s *Session) Params() *config.TuningConfig { return s.tuning }

// ProcessFrame advances the pipeline by one frame.
func (s *Session) ProcessFrame(dets []track.Detection, dt float64) (FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return FrameResult{}, fmt.Errorf("session %s already finished", s.id)
	}

	upd := s.tracker.Update(dets, dt)
	s.stats.RecordFrame()

	res := FrameResult{
		Frame:               upd.Frame,
		DetectionsIn:        upd.DetectionsIn,
		DetectionsKept:      upd.DetectionsKept,
		Matched:             upd.Matched,
		UnmatchedTracks:     upd.UnmatchedTracks,
		UnmatchedDetections: upd.UnmatchedDetections,
		Created:             upd.Created,
		Retired:             upd.Retired,
		LiveTracks:          s.tracker.Metrics().LiveTracks,
	}

	if s.store != nil {
		if err := s.persistFrame(res); err != nil {
			return res, err
		}
	}
	if s.log != nil {
		if err := s.log.Record(res, s.stats.Snapshot()); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Session) persistFrame(res FrameResult) error {
	for _, snap := range s.tracker.ActiveTracks() {
		obs := &sqlitestore.Observation{
			SessionID: s.id,
			TrackID:   snap.ID,
			Frame:     res.Frame,
			X:         snap.X,
			Y:         snap.Y,
			VX:        snap.VX,
			VY:        snap.VY,
			BoxW:      snap.BoxW,
			BoxH:      snap.BoxH,
			Behavior:  string(snap.Behavior),
		}
		if err := s.store.InsertObservation(obs); err != nil {
			return err
		}
	}

	if res.Frame%flushEveryFrames == 0 {
		if err := s.flushSummaries(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) flushSummaries() error {
	for _, sum := range s.tracker.Summaries() {
		if err := s.store.UpsertTrack(s.id, sum); err != nil {
			return err
		}
	}
	return nil
}

// Finish ends the session: final track summaries are flushed and the
// session row is stamped. Further ProcessFrame calls fail.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil
	}
	s.finished = true

	stats := s.stats.Snapshot()
	if s.store != nil {
		if err := s.flushSummaries(); err != nil {
			return err
		}
		if err := s.store.FinishSession(s.id, s.clock.Now(), stats.Frames, stats.AvgFPS); err != nil {
			return err
		}
	}
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			return err
		}
	}

	m := s.tracker.Metrics()
	monitoring.Logf("session %s finished: frames=%d tracks created=%d retired=%d",
		s.id, stats.Frames, m.CreatedTotal, m.RetiredTotal)
	return nil
}
