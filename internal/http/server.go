// Package http provides the HTTP server, middleware and route wiring.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar wires a handler's routes onto the router.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host             string
	Port             int
	CORSEnabled      bool
	CORSAllowOrigins string
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Server represents the HTTP API server.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new HTTP server with the standard middleware chain and
// the given handlers' routes registered.
func NewServer(config ServerConfig, logger *slog.Logger, registrars ...RouteRegistrar) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))

	if corsMiddleware := createCORSMiddleware(config.CORSEnabled, config.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if config.RateLimitEnabled {
		router.Use(RateLimitMiddleware(config.RateLimitRPS, config.RateLimitBurst, logger))
	}

	router.GET("/health", healthHandler)
	router.GET("/ready", healthHandler)

	for _, registrar := range registrars {
		registrar.RegisterRoutes(router)
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
