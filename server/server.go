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

	"github.com/askdocs/askdocs/engine/auth"
	"github.com/askdocs/askdocs/engine/auth/uc"
	"github.com/askdocs/askdocs/engine/knowledge"
	"github.com/askdocs/askdocs/pkg/config"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Deps carries the engine services the HTTP layer exposes.
type Deps struct {
	Knowledge *knowledge.Service
	Gate      auth.Gate
	Issue     *uc.Issue
	List      *uc.List
	Revoke    *uc.Revoke
}

// Server hosts the HTTP API.
type Server struct {
	config *config.ServerConfig
	deps   Deps
	log    logger.Logger
	router *gin.Engine
}

// New creates the HTTP server around the given engine services.
func New(cfg *config.ServerConfig, deps Deps, log logger.Logger) *Server {
	s := &Server{config: cfg, deps: deps, log: log}
	s.buildRouter()
	return s
}

func (s *Server) buildRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(s.log))
	registerRoutes(router, s.deps)
	s.router = router
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is canceled or a termination signal arrives,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Answer streaming holds the response open; no write deadline.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "address", fmt.Sprintf("http://%s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	case sig := <-quit:
		s.log.Debug("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("server shutdown completed")
	return nil
}
