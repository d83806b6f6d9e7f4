package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/longregen/refinery/internal/adapters/http/handlers"
	"github.com/longregen/refinery/internal/adapters/http/middleware"
	"github.com/longregen/refinery/internal/config"
	"github.com/longregen/refinery/internal/ports"
)

// Server exposes the refinement engine over REST plus a per-session
// websocket progress feed. The broadcaster passed in must also be
// registered as a run observer so accepted sessions stream their
// progress.
type Server struct {
	config      *config.Config
	router      *chi.Mux
	httpServer  *http.Server
	launcher    handlers.SessionLauncher
	store       ports.SessionRepository
	saver       handlers.SessionSaver
	finder      handlers.SimilarityFinder
	idGen       ports.IDGenerator
	broadcaster *handlers.Broadcaster
	version     string
}

func NewServer(
	cfg *config.Config,
	launcher handlers.SessionLauncher,
	store ports.SessionRepository,
	saver handlers.SessionSaver,
	finder handlers.SimilarityFinder,
	idGen ports.IDGenerator,
	broadcaster *handlers.Broadcaster,
	version string,
) *Server {
	s := &Server{
		config:      cfg,
		launcher:    launcher,
		store:       store,
		saver:       saver,
		finder:      finder,
		idGen:       idGen,
		broadcaster: broadcaster,
		version:     version,
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	healthHandler := handlers.NewHealthHandler(s.version)
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		sessionsHandler := handlers.NewSessionsHandler(
			s.launcher,
			s.store,
			s.saver,
			s.finder,
			s.idGen,
			s.config.Pipeline.Iterations,
		)
		r.Post("/sessions", sessionsHandler.Create)
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Delete("/sessions/{id}", sessionsHandler.Delete)

		feedHandler := handlers.NewFeedHandler(s.broadcaster, s.config.Server.CORSOrigins)
		r.Get("/sessions/{id}/ws", feedHandler.Handle)
	})

	s.router = r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for WebSocket streaming
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
