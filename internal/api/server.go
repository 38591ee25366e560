package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rescanio/rescan/internal/config"
	"github.com/rescanio/rescan/internal/enhance"
	"github.com/rescanio/rescan/internal/pipeline"
)

// Server is the HTTP API server for rescan. It owns the document session
// registry; the processing core underneath is stateless between calls.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	sessions     *SessionStore
	presets      map[string]enhance.Params
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, sessions *SessionStore, presets map[string]enhance.Params, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		sessions:     sessions,
		presets:      presets,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleOpenDocument)
		r.Post("/api/documents/{docID}/password", s.handleAuthenticate)
		r.Get("/api/documents/{docID}/bounds", s.handleBounds)
		r.Delete("/api/documents/{docID}", s.handleCloseDocument)

		r.Get("/api/documents/{docID}/pages/{pageIndex}/render", s.handleRenderPage)
		r.Get("/api/documents/{docID}/pages/{pageIndex}/preview", s.handlePreviewPage)
		r.Post("/api/documents/{docID}/feasibility", s.handleFeasibility)
		r.Post("/api/documents/{docID}/export", s.handleExport)

		r.Post("/api/process", s.handleProcessImage)
		r.Post("/api/convert", s.handleConvert)

		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/download", s.handleJobDownload)

		r.Get("/api/presets", s.handlePresets)
		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.presets)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth":   s.orchestrator.QueueDepth(),
		"open_sessions": s.sessions.Len(),
		"phases":        s.orchestrator.Stats(),
	})
}
