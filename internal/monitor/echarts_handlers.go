package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wildsight-data/wildsight/internal/httputil"
)

// echartsAssetsPrefix hosts the echarts JS bundle so the debug pages work
// without a local static file server.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridisPalette is the color ramp shared by the debug charts.
var viridisPalette = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleHeatmapChart renders the occupancy grid as a colored scatter (HTML).
// This is a debugging-only endpoint to eyeball dwell hotspots without a UI.
// Query params:
//   - min (optional; default 0.01) cells below this normalized value are skipped
func (ws *WebServer) handleHeatmapChart(w http.ResponseWriter, r *http.Request) {
	minVal := 0.01
	if v := r.URL.Query().Get("min"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 && parsed < 1 {
			minVal = parsed
		}
	}

	hm := ws.session.Heatmap()
	cols, rows := hm.Dims()
	cells := hm.Snapshot()

	data := make([]opts.ScatterData, 0, cols*rows/4)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v := cells[row][col]
			if v < minVal {
				continue
			}
			// Flip Y so the chart matches image coordinates (origin top-left).
			data = append(data, opts.ScatterData{Value: []interface{}{col, rows - 1 - row, v}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy Heatmap", Theme: "dark", Width: "900px", Height: "700px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Occupancy Heatmap", Subtitle: fmt.Sprintf("grid=%dx%d frames=%d cells=%d", cols, rows, hm.Frames(), len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: cols - 1, Name: "col"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: rows - 1, Name: "row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisPalette},
		}),
	)
	scatter.AddSeries("occupancy", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render heatmap chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTracksChart renders live track positions as a scatter colored by
// smoothed speed.
func (ws *WebServer) handleTracksChart(w http.ResponseWriter, r *http.Request) {
	tracks := ws.session.Tracker().ActiveTracks()
	params := ws.session.Params()
	frameW := params.GetFrameWidth()
	frameH := params.GetFrameHeight()

	pts := make([]opts.ScatterData, 0, len(tracks))
	maxSpeed := 0.0
	for _, t := range tracks {
		if t.SmoothedSpeed > maxSpeed {
			maxSpeed = t.SmoothedSpeed
		}
		// Flip Y so the chart matches image coordinates.
		pts = append(pts, opts.ScatterData{
			Name:  fmt.Sprintf("track %d (%s)", t.ID, t.Behavior),
			Value: []interface{}{t.X, frameH - t.Y, t.SmoothedSpeed},
		})
	}
	if maxSpeed == 0 {
		maxSpeed = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Active Tracks", Theme: "dark", Width: "900px", Height: "700px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Active Tracks", Subtitle: fmt.Sprintf("session=%s count=%d", ws.session.ID(), len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: frameW, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: frameH, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSpeed),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisPalette},
		}),
	)
	scatter.AddSeries("tracks", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render tracks chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
