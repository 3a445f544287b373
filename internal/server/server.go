// Package server provides the HTTP control surface of the recorder.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/ayusman/mocaprec/internal/server/api"
	"github.com/ayusman/mocaprec/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Session   api.Controller
	Hub       *overlay.Hub

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Server represents the HTTP server of the recorder.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Session != nil {
		sessionHandler := api.NewSessionHandler(s.config.Session, s.config.Store)
		s.mux.Handle("/api/session", sessionHandler)
		s.mux.Handle("/api/session/", sessionHandler)
	}

	if s.config.Store != nil {
		recordingsHandler := api.NewRecordingsHandler(s.config.Store)
		s.mux.Handle("/api/recordings", recordingsHandler)
		s.mux.Handle("/api/recordings/", recordingsHandler)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Hub))
		s.mux.Handle("/api/skeletons", NewSkeletonsHandler(s.config.Hub))
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Session != nil {
		response["state"] = s.config.Session.State().String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Handler returns the server's router for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}
