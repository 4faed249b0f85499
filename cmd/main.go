package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/api/handlers"
	"github.com/vestra-platform/vestra_service/internal/api/routes"
	"github.com/vestra-platform/vestra_service/internal/domain/services/currency"
	"github.com/vestra-platform/vestra_service/internal/domain/services/distribution"
	"github.com/vestra-platform/vestra_service/internal/domain/services/investment"
	"github.com/vestra-platform/vestra_service/internal/domain/services/ledger"
	"github.com/vestra-platform/vestra_service/internal/domain/services/performance"
	"github.com/vestra-platform/vestra_service/internal/domain/services/referral"
	"github.com/vestra-platform/vestra_service/internal/domain/services/reserve"
	"github.com/vestra-platform/vestra_service/internal/infrastructure/adapters"
	"github.com/vestra-platform/vestra_service/internal/infrastructure/cache"
	"github.com/vestra-platform/vestra_service/internal/infrastructure/config"
	"github.com/vestra-platform/vestra_service/internal/infrastructure/database"
	"github.com/vestra-platform/vestra_service/internal/infrastructure/repositories"
	"github.com/vestra-platform/vestra_service/internal/workers/distribution_worker"
	"github.com/vestra-platform/vestra_service/pkg/logger"
	"github.com/vestra-platform/vestra_service/pkg/metrics"
	"github.com/vestra-platform/vestra_service/pkg/tracing"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	// Initialize database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database connection", "error", err)
		}
	}()

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Redis is optional; without it the cycle lock and ROI cache are off
	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Warn("Redis unavailable, running without cycle lock and ROI cache", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Repositories
	walletRepo := repositories.NewWalletRepository(db, log.Zap())
	positionRepo := repositories.NewPositionRepository(db, log.Zap())
	planRepo := repositories.NewPlanRepository(db, log.Zap())
	profitLogRepo := repositories.NewProfitLogRepository(db, log.Zap())
	transactionRepo := repositories.NewTransactionRepository(db, log.Zap())
	reserveRepo := repositories.NewReserveRepository(db, log.Zap())
	ownerRepo := repositories.NewOwnerRepository(db, log.Zap())
	performanceRepo := repositories.NewPerformanceRepository(db, log.Zap())

	// Domain services
	rateTable := currency.NewRateTable(cfg.Currency.RateVersion, cfg.Currency.Rates)
	currencyService := currency.NewService(rateTable)

	ledgerService := ledger.NewService(walletRepo, currencyService, log)

	notifier := adapters.NewNotificationDispatcher(log.Zap())
	kycProvider := adapters.NewKYCStatusProvider(ownerRepo)

	investmentService := investment.NewService(
		planRepo,
		positionRepo,
		transactionRepo,
		ledgerService,
		currencyService,
		notifier,
		log,
	)

	tierRates := referral.DefaultTierRates()
	if len(cfg.Referral.TierRates) > 0 {
		tierRates = make(referral.TierRates, len(cfg.Referral.TierRates))
		for tier, rate := range cfg.Referral.TierRates {
			tierRates[tier] = decimal.NewFromFloat(rate)
		}
	}
	referralService := referral.NewService(ownerRepo, planRepo, transactionRepo, ledgerService, tierRates, notifier, log)

	reserveService := reserve.NewService(reserveRepo, positionRepo, log)

	var roiCache performance.SnapshotCache
	if redisClient != nil {
		roiCache = redisClient
	}
	roiFeed := performance.NewFeed(performanceRepo, roiCache, log)

	var cycleLock distribution.RunLock
	if redisClient != nil {
		cycleLock = cache.NewCycleLock(redisClient, time.Duration(cfg.Distribution.LockTTLSeconds)*time.Second, log.Zap())
	}

	distributionService := distribution.NewService(
		positionRepo,
		planRepo,
		profitLogRepo,
		transactionRepo,
		ledgerService,
		referralService,
		reserveService,
		roiFeed,
		kycProvider,
		notifier,
		cycleLock,
		distribution.Config{
			ServiceFeePct: decimal.NewFromFloat(cfg.Distribution.ServiceFeePct),
			RequireKYC:    cfg.Distribution.RequireKYCApproval,
		},
		log,
	)

	// HTTP layer
	router := routes.SetupRoutes(cfg, log, routes.Handlers{
		Health:       handlers.NewHealthHandler(db, redisClient, log, version),
		Wallet:       handlers.NewWalletHandlers(ledgerService, log),
		Investment:   handlers.NewInvestmentHandlers(investmentService, planRepo, profitLogRepo, log),
		Transaction:  handlers.NewTransactionHandlers(transactionRepo, log),
		Distribution: handlers.NewDistributionHandlers(distributionService, reserveService, performanceRepo, log),
	})

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Scheduled distribution cycle
	worker := distribution_worker.NewWorker(distributionService, cfg.Distribution.CronSpec, log.Zap())
	if err := worker.Start(); err != nil {
		log.Fatal("Failed to start distribution worker", "error", err)
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Periodic database connection metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	worker.Stop()

	// Give outstanding requests time to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited gracefully")
}
