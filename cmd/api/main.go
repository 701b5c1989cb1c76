// FiCore VAS API server: wallet, purchase, and webhook surfaces.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ficore-africa/vas-backend/internal/config"
	"github.com/ficore-africa/vas-backend/internal/container"
)

func main() {
	// .env is optional: production injects real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load(".", "config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	c := container.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}

	logger := c.Logger()
	logger.Info("Starting FiCore VAS API",
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	if err := c.Server().RunWithContext(ctx); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		_ = c.Shutdown(context.Background())
		os.Exit(1)
	}

	if err := c.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
