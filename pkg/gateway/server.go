package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DC-AAIA/open-webui-pipelines/pkg/config"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
)

// Server owns the gin router and the HTTP listener.
type Server struct {
	Router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	handlers   *Handlers
	log        logger.Logger
}

// NewServer builds the router, middleware chain, and routes. The registry
// behind service must already be populated; the server only serves it.
func NewServer(cfg *config.Config, service *Service, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(contextLogger(log))
	router.Use(requestLogger(log))
	router.Use(recoveryMiddleware(log))
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(corsMiddleware(cfg.Server.CORSOrigins))
	}

	server := &Server{
		Router:   router,
		cfg:      cfg,
		handlers: NewHandlers(service, cfg),
		log:      log,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.Timeout,
			WriteTimeout: cfg.Server.Timeout,
			IdleTimeout:  120 * time.Second,
		},
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all server routes under the configured prefix.
func (s *Server) setupRoutes() {
	prefix := s.cfg.Server.NormalizedPrefix()
	root := s.Router.Group(prefix)

	root.GET("/", s.handlers.RootHandler)
	root.GET("/health", s.handlers.HealthHandler)
	root.GET("/ping", s.handlers.PingHandler)

	setupSwaggerAndDocs(root, prefix)

	guarded := root.Group("")
	guarded.Use(authMiddleware(s.cfg.Auth.APIKey.Value()))
	{
		guarded.GET("/pipelines", s.handlers.ListPipelinesHandler)
		guarded.POST("/pipelines/:id", s.handlers.RunPipelineHandler)

		guarded.GET("/_tools", s.handlers.ToolsHandler)
		guarded.GET("/_tools_full", s.handlers.ToolsFullHandler)
		guarded.POST("/tools/:name", s.handlers.CallToolHandler)

		guarded.GET("/_diagnostic", s.handlers.DiagnosticHandler)
	}
}

// Start runs the listener and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("Starting pipelines gateway", "addr", s.cfg.Server.Addr(), "path_prefix", s.cfg.Server.PathPrefix)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		} else {
			errChan <- nil
		}
	}()

	// Catch immediate bind failures before reporting a successful start.
	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Info("Pipelines gateway started")
	return s.waitForShutdown(ctx, errChan)
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("Shutting down pipelines gateway")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		return err
	}

	log.Info("Pipelines gateway stopped gracefully")
	return nil
}

// waitForShutdown blocks on context cancellation, a shutdown signal, or an
// HTTP server failure.
func (s *Server) waitForShutdown(ctx context.Context, errChan <-chan error) error {
	log := logger.FromContext(ctx)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		log.Debug("Context canceled, shutting down server")
		return s.Stop(context.WithoutCancel(ctx))
	case sig := <-quit:
		log.Info("Received shutdown signal", "signal", sig.String())
		return s.Stop(ctx)
	case err := <-errChan:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
			if stopErr := s.Stop(ctx); stopErr != nil {
				log.Error("Failed to stop server after HTTP failure", "error", stopErr)
			}
			return err
		}
		return s.Stop(ctx)
	}
}
