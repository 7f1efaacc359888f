// Package monitor exposes the HTTP interface for a running tracking
// session: JSON APIs for tracks, summaries, and the heatmap, plus
// debugging charts.
package monitor

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/wildsight-data/wildsight/internal/httputil"
	"github.com/wildsight-data/wildsight/internal/monitoring"
	"github.com/wildsight-data/wildsight/internal/session"
	sqlitestore "github.com/wildsight-data/wildsight/internal/storage/sqlite"
	"github.com/wildsight-data/wildsight/internal/version"
)

//go:embed status.html
var statusHTML embed.FS

// WebServer handles the HTTP interface for a tracking session. It serves
// health checks, live track state, and historical data from the store.
type WebServer struct {
	address string
	session *session.Session
	store   *sqlitestore.TrackStore
	server  *http.Server
	started time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Session *session.Session
	Store   *sqlitestore.TrackStore
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		session: config.Session,
		store:   config.Store,
		started: time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)

	// Live session state.
	mux.HandleFunc("/api/session", ws.handleSession)
	mux.HandleFunc("/api/params", ws.handleParams)
	mux.HandleFunc("/api/metrics", ws.handleMetrics)
	mux.HandleFunc("/api/tracks/active", ws.handleActiveTracks)
	mux.HandleFunc("/api/tracks/trails", ws.handleTrails)
	mux.HandleFunc("/api/tracks/retired", ws.handleRetiredTracks)
	mux.HandleFunc("/api/tracks/get", ws.handleGetTrack)
	mux.HandleFunc("/api/tracks/summary", ws.handleSummaries)
	mux.HandleFunc("/api/heatmap", ws.handleHeatmap)

	// Persisted history.
	mux.HandleFunc("/api/db/session", ws.handleDBSession)
	mux.HandleFunc("/api/db/tracks", ws.handleDBTracks)
	mux.HandleFunc("/api/db/observations", ws.handleDBObservations)
	mux.HandleFunc("/api/db/classes", ws.handleDBClassCounts)

	// Debug charts.
	mux.HandleFunc("/debug/heatmap", ws.handleHeatmapChart)
	mux.HandleFunc("/debug/tracks", ws.handleTracksChart)
	mux.HandleFunc("/debug/trails.png", ws.handleTrailsPlot)

	return mux
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "wildsight", "version": "%s", "timestamp": "%s"}`, version.Version, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus handles the main status page endpoint.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	stats := ws.session.Stats()
	metrics := ws.session.Tracker().Metrics()

	data := struct {
		SessionID   string
		HTTPAddress string
		Uptime      string
		Stats       session.StatsSnapshot
		Metrics     interface{}
		HasDB       bool
	}{
		SessionID:   ws.session.ID(),
		HTTPAddress: ws.address,
		Uptime:      time.Since(ws.started).Round(time.Second).String(),
		Stats:       stats,
		Metrics:     metrics,
		HasDB:       ws.store != nil,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// requireStore writes an error response when no database is configured.
func (ws *WebServer) requireStore(w http.ResponseWriter) bool {
	if ws.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return false
	}
	return true
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
