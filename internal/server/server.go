package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/semaphore"

	"github.com/Ritesh-sh/Blog-AI/internal/config"
	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/pipeline"
	"github.com/Ritesh-sh/Blog-AI/internal/store"
)

// Version is reported by the service endpoint.
const Version = "1.0.0"

// Runner executes the blog pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Output, error)
	Extract(ctx context.Context, url string) (core.ExtractedContent, error)
}

// History reads stored blogs. A nil History disables the blog endpoints.
type History interface {
	Get(ctx context.Context, userID, id string) (*store.Record, error)
	List(ctx context.Context, userID string, limit int) ([]store.RecordSummary, error)
	History(ctx context.Context, userID string, limit int) ([]store.Action, error)
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	runner     Runner
	history    History
	cfg        *config.Config
	log        *slog.Logger
	inflight   *semaphore.Weighted
	startedAt  time.Time
}

// New creates a new HTTP server instance. history may be nil.
func New(runner Runner, history History, cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	maxInflight := cfg.Server.MaxInflight
	if maxInflight <= 0 {
		maxInflight = 8
	}

	s := &Server{
		router:    chi.NewRouter(),
		runner:    runner,
		history:   history,
		cfg:       cfg,
		log:       log,
		inflight:  semaphore.NewWeighted(int64(maxInflight)),
		startedAt: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 340*time.Second),
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	// The request context is the pipeline context: a timeout or client
	// disconnect cancels the outstanding external calls.
	s.router.Use(middleware.Timeout(config.Duration(s.cfg.Server.RequestTimeout, s.cfg.PipelineBudget())))

	if s.cfg.Server.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", userIDHeader},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.With(s.limitInflight).Post("/generate-blog", s.handleGenerateBlog)
		r.Post("/estimate-cost", s.handleEstimateCost)

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", s.handleListBlogs)
			r.Get("/{id}", s.handleGetBlog)
			r.Get("/{id}/export", s.handleExportBlog)
		})

		r.Get("/history", s.handleHistory)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout,
		"max_inflight", s.cfg.Server.MaxInflight,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
