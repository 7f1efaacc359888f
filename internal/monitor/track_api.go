package monitor

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wildsight-data/wildsight/internal/httputil"
)

// handleSession returns the live session identity and throughput stats.
func (ws *WebServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session_id": ws.session.ID(),
		"stats":      ws.session.Stats(),
	})
}

// handleParams returns the tuning parameters the session runs with.
func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.session.Params())
}

// handleMetrics returns tracker lifecycle counters.
func (ws *WebServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.session.Tracker().Metrics())
}

// handleActiveTracks returns all live tracks without their trails.
func (ws *WebServer) handleActiveTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.session.Tracker().ActiveTracks())
}

// handleTrails returns live tracks including their bounded history trails.
func (ws *WebServer) handleTrails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.session.Tracker().ActiveTrails())
}

// handleRetiredTracks returns tracks retired during this session.
func (ws *WebServer) handleRetiredTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.session.Tracker().RetiredTracks())
}

// handleGetTrack returns one track (live or retired) with its trail.
// Query params: id (required).
func (ws *WebServer) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "missing or invalid 'id' parameter")
		return
	}
	snap, ok := ws.session.Tracker().GetTrack(id)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no track with id %d", id))
		return
	}
	httputil.WriteJSONOK(w, snap)
}

// handleSummaries returns per-track summary rows for the whole session,
// retired tracks first.
func (ws *WebServer) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.session.Tracker().Summaries())
}

// handleHeatmap returns the normalized occupancy grid.
func (ws *WebServer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	hm := ws.session.Heatmap()
	cols, rows := hm.Dims()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"cols":   cols,
		"rows":   rows,
		"frames": hm.Frames(),
		"cells":  hm.Snapshot(),
	})
}

// handleDBSession loads a persisted session record.
// Query params: session_id (optional, defaults to the live session).
func (ws *WebServer) handleDBSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !ws.requireStore(w) {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.session.ID()
	}
	rec, err := ws.store.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "no such session")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("get session: %v", err))
		return
	}
	httputil.WriteJSONOK(w, rec)
}

// handleDBTracks lists persisted track summaries.
// Query params: session_id (optional), state (optional), limit (optional).
func (ws *WebServer) handleDBTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !ws.requireStore(w) {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.session.ID()
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	tracks, err := ws.store.ListTracks(sessionID, r.URL.Query().Get("state"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list tracks: %v", err))
		return
	}
	httputil.WriteJSONOK(w, tracks)
}

// handleDBObservations lists persisted per-frame observations for one track.
// Query params: track_id (required), session_id (optional), limit (optional).
func (ws *WebServer) handleDBObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !ws.requireStore(w) {
		return
	}
	trackID, err := strconv.ParseInt(r.URL.Query().Get("track_id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "missing or invalid 'track_id' parameter")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.session.ID()
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	obs, err := ws.store.GetObservations(sessionID, trackID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("get observations: %v", err))
		return
	}
	httputil.WriteJSONOK(w, obs)
}

// handleDBClassCounts returns per-class track counts for a session.
// Query params: session_id (optional).
func (ws *WebServer) handleDBClassCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !ws.requireStore(w) {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.session.ID()
	}
	counts, err := ws.store.ClassCounts(sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("class counts: %v", err))
		return
	}
	httputil.WriteJSONOK(w, counts)
}
