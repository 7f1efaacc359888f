package track

// MatchPair pairs a track row with a detection column and the cost the
// solver paid for the pairing.
type MatchPair struct {
	TrackIdx int
	DetIdx   int
	Cost     float64
}

// Association is the outcome of one frame's data association: which track
// rows matched which detection columns, plus the leftovers on each side.
type Association struct {
	Matches             []MatchPair
	UnmatchedTracks     []int
	UnmatchedDetections []int
}

// Associate runs global optimal assignment over a gated cost matrix where
// rows are tracks and columns are detections. numDetections is passed
// explicitly so a zero-row matrix still reports every detection as
// unmatched. Every row and every column appears exactly once across the
// three output sets; empty inputs produce empty (non-nil) slices.
func Associate(cost [][]float64, numDetections int) Association {
	nTracks := len(cost)

	assoc := Association{
		Matches:             []MatchPair{},
		UnmatchedTracks:     []int{},
		UnmatchedDetections: []int{},
	}

	assign := hungarianAssign(cost)

	detMatched := make([]bool, numDetections)
	for ti := 0; ti < nTracks; ti++ {
		di := -1
		if ti < len(assign) {
			di = assign[ti]
		}
		if di < 0 || di >= numDetections {
			assoc.UnmatchedTracks = append(assoc.UnmatchedTracks, ti)
			continue
		}
		assoc.Matches = append(assoc.Matches, MatchPair{TrackIdx: ti, DetIdx: di, Cost: cost[ti][di]})
		detMatched[di] = true
	}
	for di := 0; di < numDetections; di++ {
		if !detMatched[di] {
			assoc.UnmatchedDetections = append(assoc.UnmatchedDetections, di)
		}
	}
	return assoc
}
