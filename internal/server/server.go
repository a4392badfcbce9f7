// Package server provides the HTTP server for the LingoLens translation pipeline.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ayusman/lingolens/internal/annotation"
	"github.com/ayusman/lingolens/internal/app"
	"github.com/ayusman/lingolens/internal/mode"
	"github.com/ayusman/lingolens/internal/server/api"
	"github.com/ayusman/lingolens/internal/store"
)

// Pipeline is the part of the application the server controls.
type Pipeline interface {
	Status() app.Status
	Mode() mode.Mode
	SetMode(m mode.Mode) mode.Transition
	ToggleMode() mode.Transition
	TargetLanguage() string
	SetTargetLanguage(lang string) error
	IsEnabled() bool
	SetEnabled(enabled bool)
	Annotations() *annotation.Manager
	WatchPreview() func()
	NextPreview(after uint64, done <-chan struct{}) ([]byte, uint64, bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Pipeline  Pipeline
}

// Server represents the HTTP server for the LingoLens application.
type Server struct {
	config Config
	router *mux.Router
	start  time.Time
	hub    *AnnotationsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	// Pipeline controls
	if p := s.config.Pipeline; p != nil {
		c := &controls{pipeline: p}
		r.HandleFunc("/api/mode", c.getMode).Methods(http.MethodGet)
		r.HandleFunc("/api/mode", c.putMode).Methods(http.MethodPut)
		r.HandleFunc("/api/mode/toggle", c.toggleMode).Methods(http.MethodPost)
		r.HandleFunc("/api/language", c.getLanguage).Methods(http.MethodGet)
		r.HandleFunc("/api/language", c.putLanguage).Methods(http.MethodPut)
		r.HandleFunc("/api/enabled", c.getEnabled).Methods(http.MethodGet)
		r.HandleFunc("/api/enabled", c.putEnabled).Methods(http.MethodPut)
		r.HandleFunc("/api/annotations", c.getAnnotations).Methods(http.MethodGet)

		s.hub = NewAnnotationsHandler(p.Annotations())
		r.Handle("/api/annotations/ws", s.hub).Methods(http.MethodGet)
		r.Handle("/api/stream", NewStreamHandler(p)).Methods(http.MethodGet)
	}

	// Stored data
	if s.config.Store != nil {
		history := api.NewHistoryHandler(s.config.Store)
		r.HandleFunc("/api/history", history.List).Methods(http.MethodGet)
		r.HandleFunc("/api/history", history.Clear).Methods(http.MethodDelete)

		translations := api.NewTranslationsHandler(s.config.Store)
		r.HandleFunc("/api/translations", translations.Stats).Methods(http.MethodGet)
		r.HandleFunc("/api/translations/prune", translations.Prune).Methods(http.MethodPost)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	if s.hub != nil {
		s.hub.Close()
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Pipeline != nil {
		response["pipeline"] = s.config.Pipeline.Status()
	}

	api.WriteJSON(w, http.StatusOK, response)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
