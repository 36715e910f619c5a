package monitor

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kestrel-optics/exposure.report/db"
	"github.com/kestrel-optics/exposure.report/internal/httputil"
	"github.com/kestrel-optics/exposure.report/internal/version"
	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

//go:embed status.html
var StatusHTML embed.FS

// WebServer handles the HTTP interface for monitoring the analysis
// pipeline. It provides endpoints for health checks, live metering
// state, the segmentation overlay, and debug charts.
type WebServer struct {
	address   string
	analyzer  *pipeline.Analyzer
	plotter   *MeterPlotter
	db        *db.DB
	sessionID string
	server    *http.Server
	started   time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address   string
	Analyzer  *pipeline.Analyzer
	Plotter   *MeterPlotter
	DB        *db.DB
	SessionID string
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		analyzer:  config.Analyzer,
		plotter:   config.Plotter,
		db:        config.DB,
		sessionID: config.SessionID,
		started:   time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/status", ws.handleAPIStatus)
	mux.HandleFunc("/api/frame", ws.handleAPIFrame)
	mux.HandleFunc("/api/frames", ws.handleAPIFrames)
	mux.HandleFunc("/overlay.png", ws.handleOverlay)
	mux.HandleFunc("/charts/zones", ws.handleZoneChart)
	mux.HandleFunc("/charts/coverage", ws.handleCoverageChart)
	mux.HandleFunc("/charts/meter.png", ws.handleMeterPlot)

	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}

	return mux
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "exposure",
		"version":   version.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus handles the main status page endpoint.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	tmpl, err := template.ParseFS(StatusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	subject := "(none yet)"
	if latest := ws.analyzer.Latest(); latest != nil && !latest.Subject.None() {
		subject = fmt.Sprintf("%s (score %.2f)", latest.Subject.Name, latest.Subject.Score)
	}
	sceneStr, zonalStr := "(no metering yet)", "(no metering yet)"
	scene, zonal := ws.analyzer.Meter()
	if scene != nil {
		sceneStr = fmt.Sprintf("EV100 %.2f, %s", scene.EV100, scene.Main.String())
	}
	if zonal != nil {
		zonalStr = fmt.Sprintf("ΔEV %+.2f, %s", zonal.DeltaEV, zonal.Main.String())
	}

	data := struct {
		SessionID   string
		HTTPAddress string
		Uptime      string
		Stats       pipeline.StatsSnapshot
		Subject     string
		Scene       string
		Zonal       string
	}{
		SessionID:   ws.sessionID,
		HTTPAddress: ws.address,
		Uptime:      time.Since(ws.started).Round(time.Second).String(),
		Stats:       ws.analyzer.Stats(),
		Subject:     subject,
		Scene:       sceneStr,
		Zonal:       zonalStr,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleAPIStatus returns pipeline counters and the latest metering
// state as JSON.
func (ws *WebServer) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	scene, zonal := ws.analyzer.Meter()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session_id": ws.sessionID,
		"stats":      ws.analyzer.Stats(),
		"scene":      scene,
		"zonal":      zonal,
	})
}

// handleAPIFrame returns the latest full frame analysis as JSON.
func (ws *WebServer) handleAPIFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	latest := ws.analyzer.Latest()
	if latest == nil {
		httputil.NotFound(w, "no frame analyzed yet")
		return
	}

	httputil.WriteJSONOK(w, latest)
}

// handleAPIFrames returns recent persisted frame records for the
// current session.
// Query params:
//
//	limit (optional, default 100, max 500)
func (ws *WebServer) handleAPIFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.InternalServerError(w, "no database configured for frame lookup")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	records, err := ws.db.RecentFrames(ws.sessionID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("recent frames: %v", err))
		return
	}

	httputil.WriteJSONOK(w, records)
}

// handleOverlay serves the latest segmentation overlay as a PNG.
func (ws *WebServer) handleOverlay(w http.ResponseWriter, r *http.Request) {
	latest := ws.analyzer.Latest()
	if latest == nil || latest.Overlay == nil {
		httputil.NotFound(w, "no overlay available yet")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, latest.Overlay); err != nil {
		log.Printf("Failed to encode overlay PNG: %v", err)
	}
}

// handleMeterPlot serves the EV time-series plot as a PNG.
func (ws *WebServer) handleMeterPlot(w http.ResponseWriter, r *http.Request) {
	if ws.plotter == nil {
		httputil.NotFound(w, "no meter plotter configured")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := ws.plotter.WritePNG(w); err != nil {
		log.Printf("Failed to render meter plot: %v", err)
	}
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
