// Package api provides the HTTP API server and handlers for ArticleVault.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/articlevault/internal/config"
	"github.com/listenupapp/articlevault/internal/http/response"
	"github.com/listenupapp/articlevault/internal/metrics"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	services      *Services
	db            Pinger
	sseManager    *sse.Manager
	sseHandler    *sse.Handler
	metrics       *metrics.Metrics
	validator     *validation.Validator
	scrapeLimiter *RateLimiter
	router        *chi.Mux
	api           huma.API
	logger        *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, db Pinger, sseManager *sse.Manager, m *metrics.Metrics, cfg config.ServerConfig, logger *slog.Logger) *Server {
	s := &Server{
		services:      services,
		db:            db,
		sseManager:    sseManager,
		sseHandler:    sse.NewHandler(sseManager, logger),
		metrics:       m,
		validator:     validation.New(),
		scrapeLimiter: NewRateLimiter(cfg.ScrapeRate, time.Minute, max(cfg.ScrapeRate/2, 1)),
		router:        chi.NewRouter(),
		logger:        logger,
	}

	s.setupMiddleware(cfg.CORSOrigins)

	humaConfig := huma.DefaultConfig("ArticleVault API", "1.0.0")
	humaConfig.Info.Description = "Collects, stores, tags and searches WeChat public-account articles."
	// Bodies are enveloped, so the $schema link transformer is dropped.
	humaConfig.CreateHooks = nil
	humaConfig.Transformers = []huma.Transformer{EnvelopeTransformer}

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI dumps.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.scrapeLimiter != nil {
		s.scrapeLimiter.Stop()
	}
}

// setupMiddleware configures middleware stack. Compression is left out so
// the event stream flushes immediately.
func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerArticleRoutes()
	s.registerSearchRoutes()
	s.registerTagRoutes()
	s.registerExportRoutes()

	// Plain handlers outside huma.
	s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	if s.metrics != nil {
		s.router.Handle("/api/v1/metrics", s.metrics.Handler())
	}

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route not found", s.logger)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w, s.logger)
	})
}
