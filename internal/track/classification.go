package track

// SizeClass is the coarse wildlife category derived from a track's
// observed size and motion.
type SizeClass string

const (
	ClassBird        SizeClass = "bird"
	ClassSmallMammal SizeClass = "small_mammal"
	ClassGrazer      SizeClass = "grazer"
	ClassOther       SizeClass = "other"
)

// Classification thresholds, in pixel units against a nominal 1280x720
// frame. These are deliberately broad bands; the confidence score carries
// the uncertainty.
const (
	birdAreaMax       = 1200.0  // small boxes
	smallMammalArea   = 8000.0  // up to roughly 90x90 px
	grazerAreaMin     = 8000.0  // large ground animals
	birdRelSpeedMin   = 0.08    // birds move fast relative to their size
	grazerRelSpeedMax = 0.05    // grazers rarely exceed slow motion

	highConfidence   = 0.85
	mediumConfidence = 0.70
	lowConfidence    = 0.50

	// MinObservationsForClass is how many matched frames a track needs
	// before its class is considered meaningful.
	MinObservationsForClass = 5
)

// SizeClassResult is one classification outcome.
type SizeClassResult struct {
	Class      SizeClass `json:"class"`
	Confidence float64   `json:"confidence"`
	Model      string    `json:"model"`
}

// SizeClassifier performs deterministic rule-based classification from a
// track's average box area and smoothed relative speed. Rules replace the
// placeholder random assignment the prototype used; identical inputs always
// produce identical outputs.
type SizeClassifier struct {
	ModelVersion string
}

// NewSizeClassifier returns a classifier tagged with the current rule set
// version.
func NewSizeClassifier() *SizeClassifier {
	return &SizeClassifier{ModelVersion: "rule-based-v1"}
}

func clampConfidence(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Classify derives the class for the given feature values. avgArea is the
// mean observed box area in px²; relSpeed is the size-relative smoothed
// speed; observations is the matched-frame count.
func (sc *SizeClassifier) Classify(avgArea, relSpeed float64, observations int64) SizeClassResult {
	result := SizeClassResult{Model: sc.ModelVersion}

	if observations < MinObservationsForClass {
		result.Class = ClassOther
		result.Confidence = lowConfidence * 0.5
		return result
	}

	switch {
	case avgArea < birdAreaMax && relSpeed >= birdRelSpeedMin:
		result.Class = ClassBird
		result.Confidence = sc.birdConfidence(avgArea, relSpeed, observations)
	case avgArea >= grazerAreaMin && relSpeed <= grazerRelSpeedMax:
		result.Class = ClassGrazer
		result.Confidence = sc.grazerConfidence(avgArea, observations)
	case avgArea < smallMammalArea:
		result.Class = ClassSmallMammal
		result.Confidence = sc.smallMammalConfidence(avgArea, observations)
	default:
		result.Class = ClassOther
		result.Confidence = lowConfidence
	}
	return result
}

func (sc *SizeClassifier) birdConfidence(avgArea, relSpeed float64, observations int64) float64 {
	confidence := mediumConfidence
	if avgArea < birdAreaMax/2 {
		confidence += 0.1
	}
	if relSpeed > 2*birdRelSpeedMin {
		confidence += 0.05
	}
	if observations > 20 {
		confidence += 0.05
	}
	return clampConfidence(confidence, lowConfidence, highConfidence)
}

func (sc *SizeClassifier) grazerConfidence(avgArea float64, observations int64) float64 {
	confidence := mediumConfidence
	if avgArea > 2*grazerAreaMin {
		confidence += 0.1
	}
	if observations > 30 {
		confidence += 0.05
	}
	return clampConfidence(confidence, lowConfidence, highConfidence)
}

func (sc *SizeClassifier) smallMammalConfidence(avgArea float64, observations int64) float64 {
	confidence := mediumConfidence
	if avgArea > birdAreaMax && avgArea < smallMammalArea/2 {
		confidence += 0.1
	}
	if observations > 20 {
		confidence += 0.05
	}
	return clampConfidence(confidence, lowConfidence, highConfidence)
}

// Apply classifies the track from its accumulated features and records the
// result on it.
func (sc *SizeClassifier) Apply(trk *TrackedObject) {
	if trk.ObservationCount == 0 {
		return
	}
	avgArea := trk.AreaSum / float64(trk.ObservationCount)
	result := sc.Classify(avgArea, trk.RelSpeed, trk.ObservationCount)
	trk.Class = string(result.Class)
	trk.ClassConfidence = result.Confidence
}
