// Package server provides the HTTP server and routing for Harvest.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/harvest/internal/database"
	"github.com/aristath/harvest/internal/di"
	backtesthandlers "github.com/aristath/harvest/internal/modules/backtest/handlers"
	timeserieshandlers "github.com/aristath/harvest/internal/modules/timeseries/handlers"
	"github.com/aristath/harvest/pkg/logger"
)

// requestTimeout bounds every route except the websocket stream
const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log           zerolog.Logger
	Port          int
	DevMode       bool
	DataDir       string
	AdminPassword string
	JWTSecret     string
	Container     *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	container      *di.Container
	auth           *Auth
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) (*Server, error) {
	if cfg.Container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	auth, err := NewAuth(cfg.AdminPassword, cfg.JWTSecret, cfg.Log)
	if err != nil {
		return nil, err
	}

	c := cfg.Container
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.DataDir,
		[]*database.DB{c.HarvestDB, c.CacheDB},
		c.AlphaVantageClient,
		c.Scheduler,
		c.BackupService,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            logger.Component(cfg.Log, "server"),
		port:           cfg.Port,
		container:      c,
		auth:           auth,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: the stream route writes for as long as a batch runs
	}

	return s, nil
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	backtestHandler := backtesthandlers.NewHandler(s.container.BacktestService, s.log)
	timeseriesHandler := timeserieshandlers.NewHandler(s.container.TimeseriesService, s.log)

	s.router.Route("/api", func(r chi.Router) {
		// long-lived websocket, outside the request timeout
		backtestHandler.RegisterStreamRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			backtestHandler.RegisterRoutes(r)
			timeseriesHandler.RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/disk", s.systemHandlers.HandleDiskUsage)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/login", s.auth.HandleLogin)

				r.Group(func(r chi.Router) {
					r.Use(s.auth.Middleware)

					timeseriesHandler.RegisterAdminRoutes(r)
					r.Post("/backup", s.systemHandlers.HandleBackup)
					r.Get("/backups", s.systemHandlers.HandleListBackups)
					r.Get("/jobs", s.systemHandlers.HandleListJobs)
					r.Post("/jobs/{name}", func(w http.ResponseWriter, r *http.Request) {
						s.systemHandlers.HandleRunJob(w, r, chi.URLParam(r, "name"))
					})
				})
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
