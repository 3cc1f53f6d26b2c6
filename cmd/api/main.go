package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sherlock-labs/screenshot-sherlock/internal/api/router"
	appconfig "github.com/sherlock-labs/screenshot-sherlock/internal/config"
	"github.com/sherlock-labs/screenshot-sherlock/internal/http/handlers"
	httpmiddleware "github.com/sherlock-labs/screenshot-sherlock/internal/http/middleware"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting screenshot-sherlock API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, analysisMetrics := setupMetrics()

	deps, err := bootstrap(ctx, cfg, analysisMetrics, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	svc := deps.service(cfg, analysisMetrics, logger)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	go limiter.Run(ctx, cfg.RateLimitPeriod)

	requestTimeout := cfg.OSINTScanTimeout + 2*cfg.VisionTimeout + 30*time.Second

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Users:              handlers.NewUserHandler(svc, logger),
		Screenshots:        handlers.NewScreenshotHandler(svc, cfg.MaxUploadBytes, logger),
		Analyses:           handlers.NewAnalysisHandler(svc, logger),
		Conversations:      handlers.NewConversationHandler(svc, logger),
		Wingman:            handlers.NewWingmanHandler(svc, logger),
		OSINT:              handlers.NewOSINTHandler(svc, logger),
		MetricsHandler:     metricsHandler,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		RequestTimeout:     requestTimeout,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
