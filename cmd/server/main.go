package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuadrantes/iph-console/backend/internal/config"
	"github.com/cuadrantes/iph-console/backend/internal/errorreporting"
	"github.com/cuadrantes/iph-console/backend/internal/logger"
	"github.com/cuadrantes/iph-console/backend/internal/server"
	"github.com/cuadrantes/iph-console/backend/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	logger.Info("Initializing IPH console backend", "log_level", cfg.LogLevel)

	if err := errorreporting.Init(cfg); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.IsSentryEnabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer errorreporting.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(cfg, "iph-console-backend")
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to assemble server", "error", err)
		log.Fatalf("Failed to assemble server: %v", err)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		log.Fatalf("Server exited with error: %v", err)
	}
}
