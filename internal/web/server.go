// Package web exposes the device API: session control, gallery
// inspection and sync, health and metrics.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/diemxuan/face-attendance/internal/enroll"
	"github.com/diemxuan/face-attendance/internal/gallery"
	"github.com/diemxuan/face-attendance/internal/hr"
	"github.com/diemxuan/face-attendance/internal/session"
)

// LoopFactory builds a fresh decision loop for one session request. Each
// session needs its own loop; they are single-use.
type LoopFactory func(action hr.Action) (*session.Loop, error)

// Roster fetches the employee list for gallery sync.
type Roster interface {
	FetchEmployees(ctx context.Context) ([]hr.Employee, error)
}

// Server is the device HTTP API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger

	manager  *session.Manager
	store    gallery.Store
	enroller *enroll.Enroller
	roster   Roster
	newLoop  LoopFactory
}

// NewServer wires the API server.
func NewServer(host string, port int, manager *session.Manager, store gallery.Store, enroller *enroll.Enroller, roster Roster, newLoop LoopFactory, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	s := &Server{
		router:   r,
		logger:   logger,
		manager:  manager,
		store:    store,
		enroller: enroller,
		roster:   roster,
		newLoop:  newLoop,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // gallery sync embeds the whole roster
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions/{id}", s.handleSessionStatus)
		r.Delete("/sessions/{id}", s.handleCancelSession)

		r.Get("/gallery", s.handleListGallery)
		r.Post("/gallery/sync", s.handleSyncGallery)
		r.Post("/gallery/nearest", s.handleNearest)
	})

	s.router.Handle("/metrics", promhttp.Handler())
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
