package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/dgallion1/podsite/internal/config"
	"github.com/dgallion1/podsite/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Builder produces a site build. *pipeline.Builder satisfies it.
type Builder interface {
	Build(ctx context.Context) (*pipeline.Result, error)
}

// Server is the preview HTTP server for a rendered site.
type Server struct {
	router  chi.Router
	builder Builder
	log     *slog.Logger
	cfg     config.Config

	current    atomic.Pointer[pipeline.Result]
	generation atomic.Int64
	buildMu    sync.Mutex
}

// NewServer creates and configures the HTTP server. Call Rebuild or
// Publish before serving so the API has a build to report on.
func NewServer(b Builder, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		builder: b,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Publish makes res the build served by the API.
func (s *Server) Publish(res *pipeline.Result) {
	s.current.Store(res)
	s.generation.Add(1)
}

// Current returns the published build, or nil.
func (s *Server) Current() *pipeline.Result {
	return s.current.Load()
}

// Rebuild runs a build and publishes it on success. Concurrent calls are
// serialised; a failed build leaves the previous one in place.
func (s *Server) Rebuild(ctx context.Context) (*pipeline.Result, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	res, err := s.builder.Build(ctx)
	if err != nil {
		s.log.Error("rebuild failed", "error", err)
		return nil, err
	}
	s.Publish(res)
	return res, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(logRequests(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/api/symbols", s.handleListSymbols)
	r.Get("/api/symbols/{name}", s.handleGetSymbol)
	r.Get("/api/report", s.handleReport)

	// Endpoints that do work, authenticated when a key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(requireKey(s.cfg.APIKey, s.log))
		}
		r.Post("/api/rebuild", s.handleRebuild)
		r.Post("/api/preview", s.handlePreview)
	})

	// Everything else is the rendered site.
	r.Handle("/*", http.FileServer(http.Dir(s.cfg.Output)))

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"generation": s.generation.Load(),
	})
}
