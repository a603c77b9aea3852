package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	apisetup "voice-assistant/internal/api"
	"voice-assistant/internal/bootstrap"
	"voice-assistant/internal/config"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voicecall/twilio"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	httpServer    *http.Server
	router        *gin.Engine
	deps          *bootstrap.Dependencies
	config        *config.Config
	logger        *observability.Logger
	stopScheduler context.CancelFunc
	schedulerDone chan struct{}
}

// New creates a new Server instance
func New(cfg *config.Config, deps *bootstrap.Dependencies, logger *observability.Logger) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
}

// Setup configures the HTTP router with middleware and routes
func (s *Server) Setup() {
	if os.Getenv("GO_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()

	// CORS only matters for the JSON endpoints; the provider does not send an Origin.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	corsConfig.AllowOrigins = s.config.Server.AllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}

	// Apply middleware
	s.router.Use(cors.New(corsConfig))
	s.router.Use(observability.Middleware(s.logger))

	var webhookAuth []gin.HandlerFunc
	if s.config.Twilio.ValidateSignature {
		webhookAuth = append(webhookAuth, twilio.SignatureMiddleware(s.config.Twilio.AuthToken, s.config.Server.PublicBaseURL, s.logger))
	}

	// Register routes
	api := apisetup.New(
		s.router.Group("/"),
		s.deps.VoiceCallHandler,
		promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}),
		webhookAuth...,
	)
	api.RegisterRoutes()
}

// Start begins listening for HTTP requests and starts background jobs
func (s *Server) Start(ctx context.Context) error {
	schedulerCtx, cancel := context.WithCancel(ctx)
	s.stopScheduler = cancel
	s.schedulerDone = make(chan struct{})
	go func() {
		defer close(s.schedulerDone)
		if err := s.deps.Scheduler.Start(schedulerCtx); err != nil {
			s.logger.Error(ctx, "scheduler stopped with error", err)
		}
	}()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run the server in a goroutine so that it doesn't block
	go func() {
		s.logger.Info(ctx, fmt.Sprintf("Server starting on port %d", s.config.Server.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "server failed to start", err)
			os.Exit(1)
		}
	}()

	return nil
}

// WaitForShutdown blocks until a shutdown signal is received, then gracefully shuts down
func (s *Server) WaitForShutdown(ctx context.Context) error {
	// Set up a channel to listen for OS signals for shutdown
	quit := make(chan os.Signal, 1)
	// kill (no param) default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received
	<-quit
	s.logger.Info(ctx, "Shutting down server...")

	// In-flight turns get up to the turn timeout to finish and commit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Call.TurnTimeout+5*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info(ctx, "Server exited gracefully")
	return nil
}

// Shutdown stops the HTTP server, then the scheduler, then closes dependencies. The later
// steps run even when the HTTP server does not drain before ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
	}

	if s.stopScheduler != nil {
		s.stopScheduler()
		<-s.schedulerDone
	}

	// Cleanup dependencies
	s.deps.Cleanup()

	return errors.Join(errs...)
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}
