package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/dogbreed-api/internal/config"
	"github.com/Brownie44l1/dogbreed-api/internal/core"
	"github.com/Brownie44l1/dogbreed-api/internal/fetch"
	"github.com/Brownie44l1/dogbreed-api/internal/handlers"
	"github.com/Brownie44l1/dogbreed-api/internal/labels"
	"github.com/Brownie44l1/dogbreed-api/internal/metrics"
	"github.com/Brownie44l1/dogbreed-api/internal/model"

	"github.com/gin-gonic/gin"
)

// Options collects what NewServer needs beyond configuration.
type Options struct {
	Config config.Config
	Logger core.Logger
	Loader model.Loader
}

// Server application server
type Server struct {
	config  config.Config
	logger  core.Logger
	router  *gin.Engine
	models  *model.Cache
	metrics *metrics.Service
	handler *handlers.Handler

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewServer wires the label table, model cache, fetcher and handlers.
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("model loader is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	cfg := opts.Config
	if info, err := os.Stat(cfg.ModelsDir); err != nil || !info.IsDir() {
		opts.Logger.Warn("Models directory %s is not accessible, every prediction will return 404", cfg.ModelsDir)
	}

	metricsService := metrics.New()
	table := labels.Load(cfg.LabelsPath, opts.Logger)

	models := model.NewCache(model.CacheConfig{
		Dir:     cfg.ModelsDir,
		Loader:  opts.Loader,
		Logger:  opts.Logger,
		Metrics: metricsService,
	})

	fetcher := fetch.New(fetch.Config{
		Timeout:  cfg.FetchTimeout,
		MaxBytes: cfg.MaxUploadBytes,
		Metrics:  metricsService,
	})

	handler := handlers.NewHandler(handlers.Config{
		Models:         models,
		Labels:         table,
		Fetcher:        fetcher,
		Logger:         opts.Logger,
		Metrics:        metricsService,
		InputLayout:    cfg.InputLayout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	s := &Server{
		config:         cfg,
		logger:         opts.Logger,
		models:         models,
		metrics:        metricsService,
		handler:        handler,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	s.setupRoutes()

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until SIGINT/SIGTERM or Close.
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: core.ReadHeaderTimeout,
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), core.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.logger.Info("Server starting on port %s", s.config.Port)
	s.logger.Info("Models directory: %s, input layout: %s", s.config.ModelsDir, s.config.InputLayout)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-quit:
			s.logger.Info("Shutdown signal received, shutting down gracefully...")
			s.shutdownCancel()
		case <-s.shutdownCtx.Done():
		}
		signal.Stop(quit)
	}()
}

// Close stops the server and releases loaded models.
func (s *Server) Close() error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}
	if s.models != nil {
		if err := s.models.Close(); err != nil {
			return fmt.Errorf("close model cache: %w", err)
		}
	}
	return nil
}
