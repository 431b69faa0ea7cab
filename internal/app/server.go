package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/cortexprep/internal/api/middlewares"
	"github.com/markdave123-py/cortexprep/internal/config"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Preprocess *handlers.PreprocessHandler
	Search     *handlers.SearchHandler
	Agent      *handlers.AgentHandler
	Documents  *handlers.DocumentHandler
	Health     *handlers.HealthHandler
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewRouter builds and wires all routes. Everything except the health check needs a JWT.
func NewRouter(cfg *config.Config, log *zap.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Get("/health", h.Health.Health)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
			protected.Post("/preprocess/{pipeline}", h.Preprocess.Enqueue)
			protected.Get("/runs/{id}", h.Preprocess.GetRun)
			protected.Post("/search", h.Search.Search)
			protected.Post("/documents/upload", h.Documents.UploadDocument)
			protected.Get("/agent/tools", h.Agent.ListTools)
			protected.Post("/agent/query", h.Agent.Query)
			protected.Post("/tools/html_crawl", h.Agent.HTMLCrawl)
			protected.Post("/tools/weather", h.Agent.Weather)
		})
	})
	return r
}

func NewServer(cfg *config.Config, log *zap.Logger, h Handlers) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, log, h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
