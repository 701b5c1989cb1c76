// Package http assembles the REST API: middleware chain, route groups, and
// the server lifecycle.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ficore-africa/vas-backend/internal/adapters/http/common"
	"github.com/ficore-africa/vas-backend/internal/adapters/http/handlers"
	"github.com/ficore-africa/vas-backend/internal/adapters/http/middleware"
)

// RouterConfig carries the cross-cutting router dependencies.
type RouterConfig struct {
	Logger         *slog.Logger
	Pool           *pgxpool.Pool
	Redis          *redis.Client
	NATS           *nats.Conn
	Version        string
	Environment    string
	AllowedOrigins []string
	TokenVerifier  middleware.TokenVerifier
}

// WalletUseCases groups the wallet surface's use cases.
type WalletUseCases struct {
	CreateWallet     handlers.CreateWalletUseCase
	Balance          handlers.BalanceUseCase
	Pin              handlers.PinUseCase
	ListTransactions handlers.ListTransactionsUseCase
	SyncTransactions handlers.SyncTransactionsUseCase
}

// PurchaseUseCases groups the purchase surface's use cases.
type PurchaseUseCases struct {
	BuyAirtime handlers.BuyAirtimeUseCase
	BuyData    handlers.BuyDataUseCase
	Catalog    handlers.CatalogUseCase
}

// AdminUseCases groups the back-office use cases.
type AdminUseCases struct {
	Adjust   handlers.AdminAdjustUseCase
	PinReset handlers.AdminPinResetUseCase
}

// RouterBuilder assembles the gin engine step by step.
type RouterBuilder struct {
	config   *RouterConfig
	wallets  *WalletUseCases
	purchase *PurchaseUseCases
	admin    *AdminUseCases
	webhook  handlers.ProcessFundingUseCase
}

// NewRouterBuilder creates a RouterBuilder.
func NewRouterBuilder(config *RouterConfig) *RouterBuilder {
	if config == nil {
		config = &RouterConfig{Logger: slog.Default(), Version: "dev", Environment: "development"}
	}
	return &RouterBuilder{config: config}
}

// WithWalletUseCases adds the wallet surface.
func (b *RouterBuilder) WithWalletUseCases(useCases *WalletUseCases) *RouterBuilder {
	b.wallets = useCases
	return b
}

// WithPurchaseUseCases adds the purchase surface.
func (b *RouterBuilder) WithPurchaseUseCases(useCases *PurchaseUseCases) *RouterBuilder {
	b.purchase = useCases
	return b
}

// WithAdminUseCases adds the back-office surface.
func (b *RouterBuilder) WithAdminUseCases(useCases *AdminUseCases) *RouterBuilder {
	b.admin = useCases
	return b
}

// WithFundingWebhook adds the funding webhook processor.
func (b *RouterBuilder) WithFundingWebhook(uc handlers.ProcessFundingUseCase) *RouterBuilder {
	b.webhook = uc
	return b
}

// Build assembles the engine.
func (b *RouterBuilder) Build() *gin.Engine {
	if b.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupValidator()

	// Recovery first, then request id so every later line carries it.
	router.Use(middleware.Recovery(b.config.Logger))
	router.Use(middleware.RequestID())

	corsConfig := middleware.DefaultCORSConfig()
	if b.config.Environment == "production" {
		corsConfig.AllowOrigins = b.config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(middleware.CORS(corsConfig))

	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    b.config.Logger,
		SkipPaths: []string{"/health", "/live", "/ready", "/metrics"},
	}))
	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := handlers.NewHealthHandler(b.config.Pool, b.config.Redis, b.config.NATS, b.config.Version)
	healthHandler.RegisterRoutes(router)

	v1 := router.Group("/api/v1")

	// Webhook is public: the HMAC signature authenticates the caller.
	if b.webhook != nil {
		webhookHandler := handlers.NewWebhookHandler(b.webhook)
		webhookHandler.RegisterRoutes(v1.Group(""))
	}

	protected := v1.Group("")
	protected.Use(middleware.Auth(b.config.TokenVerifier))
	{
		if b.wallets != nil {
			walletHandler := handlers.NewWalletHandler(
				b.wallets.CreateWallet,
				b.wallets.Balance,
				b.wallets.Pin,
				b.wallets.ListTransactions,
				b.wallets.SyncTransactions,
			)
			walletHandler.RegisterRoutes(protected)
		}

		if b.purchase != nil {
			purchaseHandler := handlers.NewPurchaseHandler(
				b.purchase.BuyAirtime,
				b.purchase.BuyData,
				b.purchase.Catalog,
			)
			purchaseHandler.RegisterRoutes(protected)
		}
	}

	if b.admin != nil {
		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.Auth(b.config.TokenVerifier))
		adminGroup.Use(middleware.RequireRole(middleware.RoleAdmin))
		adminHandler := handlers.NewAdminHandler(b.admin.Adjust, b.admin.PinReset)
		adminHandler.RegisterRoutes(adminGroup)
	}

	router.NoRoute(func(c *gin.Context) {
		common.Error(c, 404, &common.APIError{
			Code:    common.ErrCodeNotFound,
			Message: "Endpoint not found",
			Details: map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			},
		})
	})

	return router
}
