package monitor

import (
	"fmt"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/wildsight-data/wildsight/internal/httputil"
	"github.com/wildsight-data/wildsight/internal/track"
)

// trailPlot builds a gonum plot of track trails in frame coordinates.
// Y is inverted so the plot matches image coordinates (origin top-left).
func trailPlot(trails []track.TrackSnapshot, frameW, frameH float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Track Trails"
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	p.X.Min, p.X.Max = 0, frameW
	p.Y.Min, p.Y.Max = 0, frameH

	for i, t := range trails {
		if len(t.History) < 2 {
			continue
		}
		pts := make(plotter.XYs, 0, len(t.History))
		for _, h := range t.History {
			pts = append(pts, plotter.XY{X: h.X, Y: frameH - h.Y})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("track %d trail: %w", t.ID, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%d %s", t.ID, t.Label), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SaveTrailPlot writes a PNG of the session's current trails to path.
func SaveTrailPlot(trails []track.TrackSnapshot, frameW, frameH float64, path string) error {
	p, err := trailPlot(trails, frameW, frameH)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 10*vg.Inch*vg.Length(frameH/frameW), path); err != nil {
		return fmt.Errorf("save trail plot: %w", err)
	}
	return nil
}

// handleTrailsPlot renders the current trails as a PNG.
func (ws *WebServer) handleTrailsPlot(w http.ResponseWriter, r *http.Request) {
	params := ws.session.Params()
	frameW := params.GetFrameWidth()
	frameH := params.GetFrameHeight()

	p, err := trailPlot(ws.session.Tracker().ActiveTrails(), frameW, frameH)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("build trail plot: %v", err))
		return
	}

	wt, err := p.WriterTo(10*vg.Inch, 10*vg.Inch*vg.Length(frameH/frameW), "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render trail plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		return
	}
}
