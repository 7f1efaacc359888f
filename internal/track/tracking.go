package track

import (
	"fmt"
	"math"
	"sync"
)

// TrackState is the lifecycle state of a tracked object.
type TrackState string

const (
	StateTentative TrackState = "tentative"
	StateConfirmed TrackState = "confirmed"
	StateLost      TrackState = "lost"
	StateRetired   TrackState = "retired"
)

// TrackPoint is one entry in a track's smoothed center history.
type TrackPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Frame int64   `json:"frame"`
}

// TrackerConfig gathers every tunable the tracker needs. Validate rejects
// out-of-range values; an invalid config is the one error class that stops
// a session from starting.
type TrackerConfig struct {
	FrameW float64
	FrameH float64

	// UseKalman selects the per-track motion model at creation time:
	// KalmanCV when true, Passthrough when false.
	UseKalman bool
	Estimator EstimatorConfig

	Metric         CostMetric
	GateDistancePx float64

	HitsToConfirm     int // consecutive matches promoting Tentative to Confirmed
	LostAfterMisses   int // consecutive misses demoting Confirmed to Lost
	RetireAfterMisses int // consecutive misses retiring a track

	MaxHistory int // bounded center history per track

	SlowMinRel        float64 // size-relative speed below which a track is stationary
	FastMinRel        float64 // size-relative speed at or above which a track is fast
	SpeedSmoothing    float64 // EMA weight on previous smoothed speed
	SizeSmoothing     float64 // EMA weight on previous smoothed box size
	BorderMarginRatio float64

	// MinConfidence filters detections per label before tracking. Empty
	// keeps every label.
	MinConfidence map[string]float64
}

// Validate checks the configuration for values that would corrupt tracking
// rather than merely tune it badly.
func (c TrackerConfig) Validate() error {
	if c.FrameW <= 0 || c.FrameH <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %gx%g", c.FrameW, c.FrameH)
	}
	if !c.Metric.Valid() {
		return fmt.Errorf("unknown cost metric %q", c.Metric)
	}
	if c.GateDistancePx <= 0 {
		return fmt.Errorf("gate distance must be positive, got %g", c.GateDistancePx)
	}
	if c.HitsToConfirm < 1 {
		return fmt.Errorf("hits to confirm must be at least 1, got %d", c.HitsToConfirm)
	}
	if c.LostAfterMisses < 1 {
		return fmt.Errorf("lost-after misses must be at least 1, got %d", c.LostAfterMisses)
	}
	if c.RetireAfterMisses < c.LostAfterMisses {
		return fmt.Errorf("retire-after misses (%d) must be >= lost-after misses (%d)",
			c.RetireAfterMisses, c.LostAfterMisses)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("max history must be at least 1, got %d", c.MaxHistory)
	}
	if c.SlowMinRel < 0 || c.FastMinRel < c.SlowMinRel {
		return fmt.Errorf("behavior thresholds must satisfy 0 <= slow (%g) <= fast (%g)",
			c.SlowMinRel, c.FastMinRel)
	}
	if c.SpeedSmoothing < 0 || c.SpeedSmoothing >= 1 {
		return fmt.Errorf("speed smoothing must be in [0, 1), got %g", c.SpeedSmoothing)
	}
	if c.SizeSmoothing < 0 || c.SizeSmoothing >= 1 {
		return fmt.Errorf("size smoothing must be in [0, 1), got %g", c.SizeSmoothing)
	}
	if c.BorderMarginRatio < 0 || c.BorderMarginRatio >= 0.5 {
		return fmt.Errorf("border margin ratio must be in [0, 0.5), got %g", c.BorderMarginRatio)
	}
	if c.Estimator.MeasurementNoise <= 0 && c.UseKalman {
		return fmt.Errorf("measurement noise must be positive, got %g", c.Estimator.MeasurementNoise)
	}
	return nil
}

// TrackedObject is one live (or just-retired) track. All fields besides the
// motion model are plain data; external callers only ever see deep copies
// via the tracker's snapshot accessors.
type TrackedObject struct {
	ID    int64
	Label string
	State TrackState

	Hits   int // consecutive matched frames
	Misses int // consecutive unmatched frames

	FirstFrame    int64
	LastSeenFrame int64
	AgeFrames     int64

	// Smoothed box extent, kept outside the motion state so box jitter
	// never feeds back into the velocity estimate.
	BoxW, BoxH float64
	// AreaSum accumulates observed box areas for size classification.
	AreaSum          float64
	ObservationCount int64

	Behavior   BehaviorLabel
	NearBorder bool

	Class           string
	ClassConfidence float64

	History      []TrackPoint
	PathLengthPx float64
	DwellFrames  int64

	SmoothedSpeed float64 // EMA of raw speed, px/s
	RelSpeed      float64 // size-relative smoothed speed
	AvgSpeed      float64 // mean raw speed over observed frames
	PeakSpeed     float64

	LastDetection Detection

	matchedEver bool
	speedSum    float64
	speedCount  int64
	speeds      []float64

	model MotionModel
}

// Position returns the track's current smoothed center.
func (t *TrackedObject) Position() (float64, float64) { return t.model.Position() }

// Velocity returns the track's current velocity estimate in px/s.
func (t *TrackedObject) Velocity() (float64, float64) { return t.model.Velocity() }

// Speed returns the current speed magnitude in px/s.
func (t *TrackedObject) Speed() float64 {
	vx, vy := t.model.Velocity()
	return math.Hypot(vx, vy)
}

func (t *TrackedObject) appendHistory(x, y float64, frame int64, max int) {
	if n := len(t.History); n > 0 {
		last := t.History[n-1]
		t.PathLengthPx += math.Hypot(x-last.X, y-last.Y)
	}
	t.History = append(t.History, TrackPoint{X: x, Y: y, Frame: frame})
	if len(t.History) > max {
		t.History = t.History[len(t.History)-max:]
	}
}

// Tracker owns the live track set, the monotonic id counter, and the
// per-frame update pipeline. All exported methods are safe for concurrent
// use; Update itself must be called frame-sequentially by a single caller.
type Tracker struct {
	mu sync.RWMutex

	cfg        TrackerConfig
	builder    CostMatrixBuilder
	analyzer   BehaviorAnalyzer
	classifier *SizeClassifier
	heatmap    *HeatmapAccumulator

	tracks     []*TrackedObject // live set, ascending ID order
	retired    []*TrackedObject
	nextID     int64
	frameIndex int64

	createdTotal   int64
	confirmedTotal int64
	retiredTotal   int64
	skippedUpdates int64 // corrections skipped on singular innovation
	fragmentations int64 // confirmed tracks that went Lost and recovered
}

// NewTracker validates the config and builds a tracker. The heatmap and
// size classifier are optional; pass nil to disable either.
func NewTracker(cfg TrackerConfig, heatmap *HeatmapAccumulator, classifier *SizeClassifier) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	return &Tracker{
		cfg: cfg,
		builder: CostMatrixBuilder{
			Metric:         cfg.Metric,
			GateDistancePx: cfg.GateDistancePx,
		},
		analyzer: BehaviorAnalyzer{
			Classifier:        BehaviorClassifier{SlowMin: cfg.SlowMinRel, FastMin: cfg.FastMinRel},
			Smoothing:         cfg.SpeedSmoothing,
			FrameW:            cfg.FrameW,
			FrameH:            cfg.FrameH,
			BorderMarginRatio: cfg.BorderMarginRatio,
		},
		classifier: classifier,
		heatmap:    heatmap,
		nextID:     1,
	}, nil
}

// FrameIndex returns the number of frames processed so far.
func (t *Tracker) FrameIndex() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frameIndex
}

// UpdateResult summarises one frame's bookkeeping for callers that log or
// persist per-frame outcomes.
type UpdateResult struct {
	Frame               int64
	DetectionsIn        int
	DetectionsKept      int
	Matched             int
	UnmatchedTracks     int
	UnmatchedDetections int
	Created             int
	Retired             int
}

// Update advances the tracker by one frame. The fixed order is: predict
// every live track, build the gated cost matrix, associate, correct matched
// tracks and age unmatched ones, create tracks for leftover detections,
// then reclassify behavior and accumulate the heatmap. dt is the elapsed
// time since the previous frame in seconds; a non-positive dt is clamped
// to a minimal step so division by the interval stays defined.
func (t *Tracker) Update(dets []Detection, dt float64) UpdateResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 1e-3
	}

	t.frameIndex++
	res := UpdateResult{Frame: t.frameIndex, DetectionsIn: len(dets)}

	kept := FilterDetections(t.cfg.MinConfidence, dets)
	res.DetectionsKept = len(kept)

	// 1. Predict.
	for _, trk := range t.tracks {
		trk.model.Predict(dt)
		trk.AgeFrames++
	}

	// 2. Cost matrix over the live set in ascending ID order.
	geoms := make([]trackGeometry, len(t.tracks))
	for i, trk := range t.tracks {
		cx, cy := trk.model.Position()
		geoms[i] = trackGeometry{cx: cx, cy: cy, box: trk.LastDetection}
	}
	cost := t.builder.Build(geoms, kept)

	// 3. Associate.
	assoc := Associate(cost, len(kept))
	res.Matched = len(assoc.Matches)
	res.UnmatchedTracks = len(assoc.UnmatchedTracks)
	res.UnmatchedDetections = len(assoc.UnmatchedDetections)

	// 4. Correct matched tracks.
	for _, m := range assoc.Matches {
		t.applyMatch(t.tracks[m.TrackIdx], kept[m.DetIdx], dt)
	}

	// 5. Age unmatched tracks.
	for _, ti := range assoc.UnmatchedTracks {
		t.applyMiss(t.tracks[ti])
	}

	// 6. Create tracks from unmatched detections.
	for _, di := range assoc.UnmatchedDetections {
		t.createTrack(kept[di])
		res.Created++
	}

	// 7. Remove retired tracks from the live set.
	live := t.tracks[:0]
	for _, trk := range t.tracks {
		if trk.State == StateRetired {
			t.retired = append(t.retired, trk)
			t.retiredTotal++
			res.Retired++
			continue
		}
		live = append(live, trk)
	}
	t.tracks = live

	// 8. Behavior and size classification, then heatmap accumulation.
	if t.heatmap != nil {
		t.heatmap.BeginFrame()
	}
	for _, trk := range t.tracks {
		t.classifyBehavior(trk)
		if t.classifier != nil {
			t.classifier.Apply(trk)
		}
		if t.heatmap != nil {
			cx, cy := trk.model.Position()
			t.heatmap.Add(cx, cy)
		}
	}

	return res
}

func (t *Tracker) applyMatch(trk *TrackedObject, det Detection, dt float64) {
	cx, cy := det.Center()
	if !trk.model.Correct(cx, cy) {
		// Singular innovation covariance: skip the correction but keep
		// the match for lifecycle purposes so the track does not decay
		// while a detection clearly supports it.
		t.skippedUpdates++
	}

	trk.Misses = 0
	trk.Hits++
	trk.matchedEver = true
	trk.LastSeenFrame = t.frameIndex
	trk.LastDetection = det
	trk.Label = det.Label
	trk.ObservationCount++
	trk.AreaSum += det.Area()

	// Smoothed box extent.
	if trk.ObservationCount == 1 {
		trk.BoxW = det.Width()
		trk.BoxH = det.Height()
	} else {
		a := t.cfg.SizeSmoothing
		trk.BoxW = a*trk.BoxW + (1-a)*det.Width()
		trk.BoxH = a*trk.BoxH + (1-a)*det.Height()
	}

	switch trk.State {
	case StateTentative:
		if trk.Hits >= t.cfg.HitsToConfirm {
			trk.State = StateConfirmed
			t.confirmedTotal++
		}
	case StateLost:
		trk.State = StateConfirmed
		t.fragmentations++
	}

	sx, sy := trk.model.Position()
	trk.appendHistory(sx, sy, t.frameIndex, t.cfg.MaxHistory)

	speed := trk.Speed()
	trk.speedSum += speed
	trk.speedCount++
	trk.speeds = append(trk.speeds, speed)
	trk.AvgSpeed = trk.speedSum / float64(trk.speedCount)
	if speed > trk.PeakSpeed {
		trk.PeakSpeed = speed
	}
}

func (t *Tracker) applyMiss(trk *TrackedObject) {
	if trk.State == StateTentative && !trk.matchedEver {
		// One-frame ghost: retire without a grace period.
		trk.State = StateRetired
		return
	}

	trk.Misses++
	trk.Hits = 0

	if trk.Misses > t.cfg.RetireAfterMisses {
		trk.State = StateRetired
		return
	}
	if trk.State == StateConfirmed && trk.Misses > t.cfg.LostAfterMisses {
		trk.State = StateLost
	}

	// The track coasts on prediction; record the predicted center so the
	// trail stays continuous through occlusion.
	px, py := trk.model.Position()
	trk.appendHistory(px, py, t.frameIndex, t.cfg.MaxHistory)
}

func (t *Tracker) createTrack(det Detection) {
	cx, cy := det.Center()

	var model MotionModel
	if t.cfg.UseKalman {
		model = NewKalmanCV(cx, cy, t.cfg.Estimator)
	} else {
		model = NewPassthrough(cx, cy)
	}

	trk := &TrackedObject{
		ID:               t.nextID,
		Label:            det.Label,
		State:            StateTentative,
		FirstFrame:       t.frameIndex,
		LastSeenFrame:    t.frameIndex,
		BoxW:             det.Width(),
		BoxH:             det.Height(),
		AreaSum:          det.Area(),
		ObservationCount: 1,
		Behavior:         BehaviorStationary,
		LastDetection:    det,
		model:            model,
	}
	trk.appendHistory(cx, cy, t.frameIndex, t.cfg.MaxHistory)
	t.nextID++
	t.createdTotal++
	t.tracks = append(t.tracks, trk)
}

func (t *Tracker) classifyBehavior(trk *TrackedObject) {
	raw := trk.Speed()
	trk.SmoothedSpeed = t.analyzer.SmoothSpeed(trk.SmoothedSpeed, raw)
	trk.RelSpeed = t.analyzer.RelativeSpeed(trk.SmoothedSpeed, trk.BoxW, trk.BoxH)
	trk.Behavior = t.analyzer.Classifier.Classify(trk.RelSpeed)
	cx, cy := trk.model.Position()
	trk.NearBorder = t.analyzer.NearBorder(cx, cy)
	if trk.Behavior == BehaviorStationary {
		trk.DwellFrames++
	}
}
