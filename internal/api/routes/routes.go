package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vestra-platform/vestra_service/internal/api/handlers"
	"github.com/vestra-platform/vestra_service/internal/api/middleware"
	"github.com/vestra-platform/vestra_service/internal/infrastructure/config"
	"github.com/vestra-platform/vestra_service/pkg/logger"
	"github.com/vestra-platform/vestra_service/pkg/tracing"
)

// Handlers bundles the handler groups the router wires up
type Handlers struct {
	Health       *handlers.HealthHandler
	Wallet       *handlers.WalletHandlers
	Investment   *handlers.InvestmentHandlers
	Transaction  *handlers.TransactionHandlers
	Distribution *handlers.DistributionHandlers
}

// SetupRoutes configures all application routes
func SetupRoutes(cfg *config.Config, log *logger.Logger, h Handlers) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware, tracing first so every span covers the chain
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Probes and metrics, no identity required
	router.GET("/health/liveness", h.Health.Liveness)
	router.GET("/health/readiness", h.Health.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Owner-facing endpoints
	owner := v1.Group("")
	owner.Use(middleware.Identity(log))
	{
		owner.GET("/wallets", h.Wallet.ListWallets)
		owner.GET("/wallets/:currency/balance", h.Wallet.GetBalance)
		owner.GET("/wallets/:currency/movements", h.Wallet.GetMovements)

		owner.GET("/plans", h.Investment.ListPlans)
		owner.POST("/investments", h.Investment.CreateInvestment)
		owner.GET("/investments", h.Investment.ListInvestments)
		owner.GET("/investments/:id/profits", h.Investment.GetInvestmentProfits)

		owner.GET("/transactions", h.Transaction.ListTransactions)
	}

	// Operational endpoints
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminOnly())
	{
		admin.POST("/distribution/run", h.Distribution.RunCycle)
		admin.POST("/distribution/repair", h.Distribution.RepairProfitLog)
		admin.GET("/reserve", h.Distribution.GetReserve)
		admin.POST("/performance/snapshots", h.Distribution.IngestSnapshot)
	}

	return router
}
