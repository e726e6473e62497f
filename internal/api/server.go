package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/structlay/internal/cache"
	"github.com/dgallion1/structlay/internal/config"
	"github.com/dgallion1/structlay/internal/geometry"
	"github.com/dgallion1/structlay/internal/session"
	"github.com/dgallion1/structlay/internal/structclient"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for structlay.
type Server struct {
	router   chi.Router
	registry *session.Registry
	structs  *structclient.Client
	cache    *cache.Cache
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(reg *session.Registry, structs *structclient.Client, c *cache.Cache, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		registry: reg,
		structs:  structs,
		cache:    c,
		log:      log,
		cfg:      cfg,
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
		r.Use(AuthMiddleware(s.cfg.StructlayAPIKey, s.log))

		r.Post("/api/sessions", s.handleCreateSession)
		r.Get("/api/sessions/{sessionID}", s.handleSessionView)
		r.Delete("/api/sessions/{sessionID}", s.handleCloseSession)
		r.Post("/api/sessions/{sessionID}/events", s.handleSessionEvent)
		r.Get("/api/sessions/{sessionID}/state", s.handleSessionState)
		r.Get("/api/sessions/{sessionID}/announcements", s.handleAnnouncements)
		r.Get("/api/sessions/{sessionID}/text", s.handleSessionText)
		r.Get("/api/stats/cache", s.handleCacheStats)
	})

	s.router = r
}

// sessionConfig maps the server configuration onto per-session knobs.
func (s *Server) sessionConfig() session.Config {
	return session.Config{
		FetchTimeout:  s.cfg.FetchTimeout,
		PrefetchRange: s.cfg.PrefetchRange,
		ResizeWait:    s.cfg.ResizeWait,
		FrameInterval: s.cfg.FrameInterval,
		AnnounceDelay: s.cfg.AnnounceDelay,
		Scale:         geometry.DefaultScaleOptions(),
		DeepLinkParam: s.cfg.DeepLinkParam,
		UpdateURL:     s.cfg.UpdateURL,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
