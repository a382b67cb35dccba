// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/todoapi/internal/apidocs"
	"github.com/vyrodovalexey/todoapi/internal/config"
	"github.com/vyrodovalexey/todoapi/internal/handler"
	"github.com/vyrodovalexey/todoapi/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     *config.Config
	logger     *zap.Logger
	wsHandler  *handler.WebSocketHandler
}

// New creates a new Server instance. ready may be nil, in which case
// /ready always reports ready.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	svc handler.ItemService,
	ready handler.ReadinessCheck,
	events handler.EventSource,
) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes(svc, ready, events)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	// Route-scoped middleware runs after mux matched a route, so metric
	// labels can use the route template.
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	trusted, err := config.ParseTrustedProxies(s.config.TrustedProxies)
	if err != nil {
		s.logger.Warn("ignoring trusted proxies", zap.Error(err))
		trusted = nil
	}
	s.router.Use(mux.MiddlewareFunc(middleware.RateLimit(s.config.RateLimitPerMin, trusted, s.logger)))

	// CORS wraps the router so preflight requests are answered before
	// method matching rejects them.
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"If-None-Match",
		middleware.RequestIDHeader,
	}
	exposedHeaders := []string{
		"ETag",
		middleware.RequestIDHeader,
	}

	s.handler = middleware.CORS(s.config.CORSAllowedOrigins, allowedMethods, allowedHeaders, exposedHeaders)(s.router)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(svc handler.ItemService, ready handler.ReadinessCheck, events handler.EventSource) {
	restHandler := handler.NewRESTHandler(svc, ready, s.logger)
	restHandler.RegisterRoutes(s.router)

	if events != nil {
		s.wsHandler = handler.NewWebSocketHandler(events, s.logger)
		s.wsHandler.RegisterRoutes(s.router)
	}

	apidocs.NewHandler(s.logger).RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Int("rate_limit_per_min", s.config.RateLimitPerMin),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Hijacked connections are not tracked by http.Server.Shutdown.
	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
