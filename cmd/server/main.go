// Water-body detection server entry point
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robert-malhotra/waterwatch/internal/api"
	"github.com/robert-malhotra/waterwatch/internal/artifact"
	"github.com/robert-malhotra/waterwatch/internal/catalog"
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up logger
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("starting water-body service",
		"project", cfg.EE.Project,
		"catalog", cfg.Catalog.Type,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Load pipeline variants
	variants, err := config.LoadVariants(cfg.Pipeline.VariantsDir)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}
	logger.Info("loaded pipeline variants", "count", variants.Count(), "names", variants.Names())

	// Open the compute session once for the whole process
	authCtx, cancelAuth := context.WithTimeout(context.Background(), 30*time.Second)
	httpClient, err := earthengine.Authenticate(authCtx, earthengine.AuthOptions{
		CredentialsFile: cfg.EE.CredentialsFile,
		Timeout:         cfg.EE.Timeout,
	})
	cancelAuth()
	if err != nil {
		return fmt.Errorf("failed to authenticate with earth engine: %w", err)
	}

	ee := earthengine.NewClient(cfg.EE.BaseURL, cfg.EE.Project, httpClient).
		WithPublicProject(cfg.EE.PublicProject).
		WithLogger(logger)
	logger.Info("earth engine session ready", "base_url", cfg.EE.BaseURL)

	// Create scene catalog based on configuration
	scenes, err := catalog.New(&cfg.Catalog, ee, logger)
	if err != nil {
		return fmt.Errorf("failed to create scene catalog: %w", err)
	}
	logger.Info("using scene catalog", "name", scenes.Name())

	// Create artifact store for per-request maps and feature files
	store, err := artifact.NewFileStore(cfg.Output.Dir, cfg.Output.TTL, cfg.Output.CleanupInterval)
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}
	store.WithLogger(logger)
	defer store.Stop()
	logger.Info("initialized artifact store",
		"dir", store.Dir(),
		"ttl", cfg.Output.TTL,
		"cleanup_interval", cfg.Output.CleanupInterval,
	)

	runner := pipeline.NewRunner(ee, scenes, store, variants).WithLogger(logger)

	// Create handlers and router
	handlers := api.NewHandlers(cfg, runner, store, variants, logger)
	router := api.NewRouter(handlers, logger)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	// Make the configured logger the default for packages that log through slog directly.
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
