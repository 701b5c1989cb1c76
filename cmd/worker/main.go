// FiCore VAS worker: settlement pool, lease and reservation sweepers, and
// the outbox poller. Runs separately from the API so a vend storm cannot
// starve request handling.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ficore-africa/vas-backend/internal/config"
	"github.com/ficore-africa/vas-backend/internal/container"
)

func main() {
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
	logger.Info("Starting FiCore VAS worker",
		slog.String("version", cfg.App.Version),
		slog.Int("pool_size", cfg.Worker.PoolSize),
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.SettlementPool().Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.LeaseSweeper().Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.ReservationSweeper().Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.OutboxPoller().Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining workers")
	wg.Wait()

	if err := c.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
