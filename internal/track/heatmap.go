package track

import "math"

// HeatmapAccumulator bins track centers into a fixed grid over the frame
// and accumulates occupancy across a session. Cells decay geometrically
// each frame when a decay factor is configured, so the map can emphasise
// recent activity or (with decay 0 disabled) the whole session.
//
// The accumulator is not safe for concurrent use; the session layer
// serialises access.
type HeatmapAccumulator struct {
	binPx  float64
	cols   int
	rows   int
	decay  float64
	kernel bool
	cells  []float64
	frames int64
}

// NewHeatmapAccumulator creates a grid covering a frameW x frameH pixel
// frame with square bins of binPx pixels. decay in (0, 1] is applied to
// every cell at the start of each frame (1 or 0 means no decay). kernel
// enables 3x3 neighbourhood spreading around the center cell.
func NewHeatmapAccumulator(frameW, frameH, binPx float64, decay float64, kernel bool) *HeatmapAccumulator {
	if binPx <= 0 {
		binPx = 1
	}
	cols := int(math.Ceil(frameW / binPx))
	rows := int(math.Ceil(frameH / binPx))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &HeatmapAccumulator{
		binPx:  binPx,
		cols:   cols,
		rows:   rows,
		decay:  decay,
		kernel: kernel,
		cells:  make([]float64, cols*rows),
	}
}

// Dims returns the grid dimensions (columns, rows).
func (h *HeatmapAccumulator) Dims() (cols, rows int) { return h.cols, h.rows }

// Frames returns the number of frames accumulated since the last Reset.
func (h *HeatmapAccumulator) Frames() int64 { return h.frames }

// BeginFrame applies decay and advances the frame counter. Call once per
// frame before Add.
func (h *HeatmapAccumulator) BeginFrame() {
	h.frames++
	if h.decay <= 0 || h.decay >= 1 {
		return
	}
	for i := range h.cells {
		h.cells[i] *= h.decay
	}
}

// Add accumulates one track center. Out-of-frame centers clamp to the edge
// cell. With the kernel enabled the center cell receives weight 1.0 and
// the 8 neighbours 0.25 each; without it only the center cell increments.
func (h *HeatmapAccumulator) Add(cx, cy float64) {
	if math.IsNaN(cx) || math.IsNaN(cy) || math.IsInf(cx, 0) || math.IsInf(cy, 0) {
		return
	}
	col := h.clampCol(int(cx / h.binPx))
	row := h.clampRow(int(cy / h.binPx))

	h.cells[row*h.cols+col] += 1.0
	if !h.kernel {
		return
	}
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r := row + dr
			c := col + dc
			if r < 0 || r >= h.rows || c < 0 || c >= h.cols {
				continue
			}
			h.cells[r*h.cols+c] += 0.25
		}
	}
}

// Snapshot returns a copy of the grid normalised to [0, 1] by the current
// maximum cell. An all-zero grid snapshots as all zeros. Rows are indexed
// [row][col], row 0 at the top of the frame.
func (h *HeatmapAccumulator) Snapshot() [][]float64 {
	max := 0.0
	for _, v := range h.cells {
		if v > max {
			max = v
		}
	}
	out := make([][]float64, h.rows)
	for r := 0; r < h.rows; r++ {
		row := make([]float64, h.cols)
		for c := 0; c < h.cols; c++ {
			v := h.cells[r*h.cols+c]
			if max > 0 {
				v /= max
			}
			row[c] = v
		}
		out[r] = row
	}
	return out
}

// RawCell returns the unnormalised accumulated value at (col, row).
func (h *HeatmapAccumulator) RawCell(col, row int) float64 {
	if col < 0 || col >= h.cols || row < 0 || row >= h.rows {
		return 0
	}
	return h.cells[row*h.cols+col]
}

// Reset zeroes every cell and the frame counter.
func (h *HeatmapAccumulator) Reset() {
	for i := range h.cells {
		h.cells[i] = 0
	}
	h.frames = 0
}

func (h *HeatmapAccumulator) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= h.cols {
		return h.cols - 1
	}
	return c
}

func (h *HeatmapAccumulator) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= h.rows {
		return h.rows - 1
	}
	return r
}
