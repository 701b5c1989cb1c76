// Package container wires the application graph: config, logger, postgres,
// redis, NATS, providers, use cases, HTTP server, and background workers.
//
// Both binaries share one container. The API process builds the router; the
// worker process builds the settlement pool, sweepers, and outbox poller.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	httpadapter "github.com/ficore-africa/vas-backend/internal/adapters/http"
	"github.com/ficore-africa/vas-backend/internal/adapters/http/middleware"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/usecases/purchase"
	"github.com/ficore-africa/vas-backend/internal/application/usecases/wallet"
	"github.com/ficore-africa/vas-backend/internal/application/usecases/webhook"
	"github.com/ficore-africa/vas-backend/internal/config"
	"github.com/ficore-africa/vas-backend/internal/infrastructure/cache"
	"github.com/ficore-africa/vas-backend/internal/infrastructure/events"
	"github.com/ficore-africa/vas-backend/internal/infrastructure/persistence/postgres"
	"github.com/ficore-africa/vas-backend/internal/infrastructure/providers/monnify"
	"github.com/ficore-africa/vas-backend/internal/infrastructure/providers/peyflex"
	"github.com/ficore-africa/vas-backend/internal/pkg/logger"
	"github.com/ficore-africa/vas-backend/internal/worker"
)

// Container holds the wired application graph.
type Container struct {
	cfg    *config.Config
	logger *slog.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client
	natsConn    *nats.Conn

	// Repositories
	userRepo        ports.UserRepository
	walletRepo      ports.WalletRepository
	reservationRepo ports.ReservationRepository
	txRepo          ports.TransactionRepository
	taskRepo        ports.TaskRepository
	accountingRepo  ports.AccountingRepository
	outboxRepo      ports.OutboxRepository
	uow             ports.UnitOfWork

	// Caches
	tokenCache   ports.TokenCache
	balanceCache ports.BalanceCache

	// Providers
	monnifyClient *monnify.Client
	peyflexClient *peyflex.Client

	// Use cases
	createWalletUC *wallet.CreateWalletUseCase
	balanceUC      *wallet.GetBalanceUseCase
	pinUC          *wallet.PinUseCase
	listTxUC       *wallet.ListTransactionsUseCase
	syncTxUC       *wallet.SyncTransactionsUseCase
	adminAdjustUC  *wallet.AdminAdjustUseCase
	sweepUC        *wallet.ReleaseStaleReservationsUseCase
	buyAirtimeUC   *purchase.BuyAirtimeUseCase
	buyDataUC      *purchase.BuyDataUseCase
	catalogUC      *purchase.CatalogUseCase
	settleUC       *purchase.SettleTransactionUseCase
	fundingUC      *webhook.ProcessFundingUseCase

	// Workers
	settlementPool     *worker.SettlementPool
	leaseSweeper       *worker.LeaseSweeper
	reservationSweeper *worker.ReservationSweeper
	outboxPoller       *events.OutboxPoller

	server *httpadapter.Server
}

// New creates an uninitialized container.
func New(cfg *config.Config) *Container {
	return &Container{cfg: cfg}
}

// Initialize builds the dependency graph. Order matters: logger, then
// connections, then repositories, then use cases, then surfaces.
func (c *Container) Initialize(ctx context.Context) error {
	c.initLogger()

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	if err := c.initRedis(ctx); err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	if err := c.initNATS(); err != nil {
		return fmt.Errorf("nats init: %w", err)
	}

	c.initRepositories()
	c.initProviders()
	c.initUseCases()
	c.initWorkers()
	c.initHTTPServer()

	c.logger.Info("Container initialized",
		slog.String("environment", c.cfg.App.Environment),
		slog.String("version", c.cfg.App.Version),
	)
	return nil
}

func (c *Container) initLogger() {
	c.logger = logger.New(&logger.Config{
		Level:  c.cfg.Log.Level,
		Format: c.cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(c.logger)
}

func (c *Container) initDatabase(ctx context.Context) error {
	pool, err := postgres.NewConnectionPool(ctx, postgres.Config{
		Host:            c.cfg.Database.Host,
		Port:            c.cfg.Database.Port,
		Database:        c.cfg.Database.Database,
		User:            c.cfg.Database.User,
		Password:        c.cfg.Database.Password,
		SSLMode:         c.cfg.Database.SSLMode,
		MaxConns:        c.cfg.Database.MaxConnections,
		MinConns:        c.cfg.Database.MinConnections,
		MaxConnLifetime: c.cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: c.cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	c.pool = pool
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	client, err := cache.NewRedisClient(ctx, cache.Config{
		Addr:     c.cfg.Redis.Addr,
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	c.redisClient = client
	c.tokenCache = cache.NewTokenCache(client)
	c.balanceCache = cache.NewBalanceCache(client)
	return nil
}

func (c *Container) initNATS() error {
	conn, err := events.Connect(events.Config{
		URL:        c.cfg.NATS.URL,
		ClientName: c.cfg.NATS.ClientName,
	}, c.logger)
	if err != nil {
		return err
	}
	c.natsConn = conn
	return nil
}

func (c *Container) initRepositories() {
	c.userRepo = postgres.NewUserRepository(c.pool)
	c.walletRepo = postgres.NewWalletRepository(c.pool)
	c.reservationRepo = postgres.NewReservationRepository(c.pool)
	c.txRepo = postgres.NewTransactionRepository(c.pool)
	c.taskRepo = postgres.NewTaskRepository(c.pool)
	c.accountingRepo = postgres.NewAccountingRepository(c.pool)
	c.outboxRepo = postgres.NewOutboxRepository(c.pool)
	c.uow = postgres.NewUnitOfWork(c.pool)
}

func (c *Container) initProviders() {
	c.monnifyClient = monnify.NewClient(monnify.Config{
		BaseURL:      c.cfg.Providers.Monnify.BaseURL,
		APIKey:       c.cfg.Providers.Monnify.APIKey,
		SecretKey:    c.cfg.Providers.Monnify.SecretKey,
		ContractCode: c.cfg.Providers.Monnify.ContractCode,
	}, c.tokenCache, c.logger)

	c.peyflexClient = peyflex.NewClient(peyflex.Config{
		BaseURL: c.cfg.Providers.Peyflex.BaseURL,
		APIKey:  c.cfg.Providers.Peyflex.APIKey,
	}, c.logger)
}

func (c *Container) initUseCases() {
	c.createWalletUC = wallet.NewCreateWalletUseCase(c.walletRepo, c.uow, c.monnifyClient, c.logger)
	c.balanceUC = wallet.NewGetBalanceUseCase(c.walletRepo, c.balanceCache, c.logger)
	c.pinUC = wallet.NewPinUseCase(c.walletRepo, c.accountingRepo, c.uow, c.outboxRepo, c.logger)
	c.listTxUC = wallet.NewListTransactionsUseCase(c.txRepo, c.logger)
	c.syncTxUC = wallet.NewSyncTransactionsUseCase(c.txRepo, c.logger)
	c.adminAdjustUC = wallet.NewAdminAdjustUseCase(
		c.walletRepo, c.txRepo, c.accountingRepo, c.uow, c.outboxRepo, c.balanceCache, c.logger,
	)
	c.sweepUC = wallet.NewReleaseStaleReservationsUseCase(
		c.walletRepo, c.reservationRepo, c.txRepo, c.uow, c.balanceCache, c.logger,
	)

	c.buyAirtimeUC = purchase.NewBuyAirtimeUseCase(
		c.walletRepo, c.reservationRepo, c.txRepo, c.taskRepo, c.userRepo,
		c.uow, c.outboxRepo, c.monnifyClient, c.peyflexClient, c.balanceCache, c.logger,
	)
	c.buyDataUC = purchase.NewBuyDataUseCase(
		c.walletRepo, c.reservationRepo, c.txRepo, c.taskRepo, c.userRepo,
		c.uow, c.outboxRepo, c.monnifyClient, c.peyflexClient, c.balanceCache, c.logger,
	)
	c.catalogUC = purchase.NewCatalogUseCase(c.monnifyClient, c.peyflexClient, c.logger)
	c.settleUC = purchase.NewSettleTransactionUseCase(
		c.walletRepo, c.reservationRepo, c.txRepo, c.userRepo, c.accountingRepo,
		c.uow, c.outboxRepo, c.balanceCache, c.logger,
	)

	c.fundingUC = webhook.NewProcessFundingUseCase(
		c.walletRepo, c.userRepo, c.txRepo, c.accountingRepo, c.uow, c.outboxRepo,
		c.balanceCache, c.cfg.Providers.Monnify.WebhookSecret, c.logger,
	)
}

func (c *Container) initWorkers() {
	c.settlementPool = worker.NewSettlementPool(c.taskRepo, c.settleUC, c.cfg.Worker.PoolSize, c.logger)
	c.leaseSweeper = worker.NewLeaseSweeper(c.taskRepo, c.logger)
	c.reservationSweeper = worker.NewReservationSweeper(c.sweepUC, c.logger)

	publisher := events.NewNATSPublisher(c.natsConn, c.logger)
	c.outboxPoller = events.NewOutboxPoller(c.outboxRepo, publisher, c.uow, c.logger)
}

func (c *Container) initHTTPServer() {
	builder := httpadapter.NewRouterBuilder(&httpadapter.RouterConfig{
		Logger:         c.logger,
		Pool:           c.pool,
		Redis:          c.redisClient,
		NATS:           c.natsConn,
		Version:        c.cfg.App.Version,
		Environment:    c.cfg.App.Environment,
		AllowedOrigins: c.cfg.CORS.AllowedOrigins,
		TokenVerifier:  middleware.JWTVerifier(c.cfg.Auth.JWTSecret),
	})

	router := builder.
		WithWalletUseCases(&httpadapter.WalletUseCases{
			CreateWallet:     c.createWalletUC,
			Balance:          c.balanceUC,
			Pin:              c.pinUC,
			ListTransactions: c.listTxUC,
			SyncTransactions: c.syncTxUC,
		}).
		WithPurchaseUseCases(&httpadapter.PurchaseUseCases{
			BuyAirtime: c.buyAirtimeUC,
			BuyData:    c.buyDataUC,
			Catalog:    c.catalogUC,
		}).
		WithAdminUseCases(&httpadapter.AdminUseCases{
			Adjust:   c.adminAdjustUC,
			PinReset: c.pinUC,
		}).
		WithFundingWebhook(c.fundingUC).
		Build()

	c.server = httpadapter.NewServer(&httpadapter.ServerConfig{
		Host:            c.cfg.Server.Host,
		Port:            fmt.Sprintf("%d", c.cfg.Server.Port),
		ReadTimeout:     c.cfg.Server.ReadTimeout,
		WriteTimeout:    c.cfg.Server.WriteTimeout,
		IdleTimeout:     c.cfg.Server.IdleTimeout,
		ShutdownTimeout: c.cfg.Server.ShutdownTimeout,
		Logger:          c.logger,
	}, router)
}

// Logger returns the configured logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Pool returns the postgres pool.
func (c *Container) Pool() *pgxpool.Pool {
	return c.pool
}

// Server returns the HTTP server.
func (c *Container) Server() *httpadapter.Server {
	return c.server
}

// SettlementPool returns the settlement worker pool.
func (c *Container) SettlementPool() *worker.SettlementPool {
	return c.settlementPool
}

// LeaseSweeper returns the task lease sweeper.
func (c *Container) LeaseSweeper() *worker.LeaseSweeper {
	return c.leaseSweeper
}

// ReservationSweeper returns the stale reservation sweeper.
func (c *Container) ReservationSweeper() *worker.ReservationSweeper {
	return c.reservationSweeper
}

// OutboxPoller returns the outbox poller.
func (c *Container) OutboxPoller() *events.OutboxPoller {
	return c.outboxPoller
}

// Shutdown closes connections in reverse initialization order.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container")

	if c.natsConn != nil {
		// Flush queued publishes before closing.
		if err := c.natsConn.FlushTimeout(2 * time.Second); err != nil {
			c.logger.Warn("nats flush on shutdown failed", slog.String("error", err.Error()))
		}
		c.natsConn.Close()
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	}
	if c.pool != nil {
		c.pool.Close()
	}

	c.logger.Info("Container shut down")
	return nil
}
