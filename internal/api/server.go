package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/middleware"
	"github.com/somatic-tier-classifier/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// maxBatchCases bounds one batch request.
const maxBatchCases = 1000

// Server represents the HTTP server
type Server struct {
	config   domain.ServerConfig
	pipeline *service.Pipeline
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config domain.ServerConfig, pipeline *service.Pipeline, logger *logrus.Logger) *Server {
	switch config.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(config.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))

	server := &Server{
		config:   config,
		pipeline: pipeline,
		logger:   logger,
		router:   router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/classify", s.handleClassify)
		v1.POST("/classify/batch", s.handleClassifyBatch)
		v1.GET("/results/:variant_id", s.handleGetResults)
		v1.GET("/frameworks", s.handleFrameworks)
		v1.GET("/pathways/:analysis_type", s.handlePathway)
	}
}
