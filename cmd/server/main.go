package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/arbihedron/arbihedron-go/internal/api"
	"github.com/arbihedron/arbihedron-go/internal/cache"
	"github.com/arbihedron/arbihedron-go/internal/config"
	"github.com/arbihedron/arbihedron-go/internal/database"
	"github.com/arbihedron/arbihedron-go/internal/exchange"
	"github.com/arbihedron/arbihedron-go/internal/logging"
	"github.com/arbihedron/arbihedron-go/internal/models"
	"github.com/arbihedron/arbihedron-go/internal/services"
	"github.com/arbihedron/arbihedron-go/internal/telemetry"
)

func main() {
	// .env is optional; real deployments configure via environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	provider, err := telemetry.Init(cfg.Environment)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize telemetry")
	}
	tracer := telemetry.Tracer("arbihedron")

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	repository := database.NewRepository(db.Pool)
	snapshotCache := cache.NewRedisSnapshotCache(redisClient.Client, cfg.Trading.ScanInterval*3, logger)

	// Market gateway: exchange client wrapped in cache, rate limiting,
	// circuit breaking and transient retry.
	client := exchange.NewHTTPClient(cfg.Connector.ServiceURL, cfg.Connector.Timeout)
	defer client.Close()

	tickerCache := cache.NewTickerCache(cfg.Trading.CacheTTL, nil)
	limiter := services.NewVenueRateLimiter(services.RateLimiterConfig{
		RequestsPerSecond: cfg.Resilience.RateLimitPerSecond,
		Burst:             cfg.Resilience.RateLimitBurst,
		MaxWait:           cfg.Resilience.RateLimitMaxWait,
	})
	breakers := services.NewCircuitBreakerManager(services.CircuitBreakerConfig{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		RecoveryTimeout:  cfg.Resilience.RecoveryTimeout,
		ResetTimeout:     cfg.Resilience.RecoveryTimeout * 2,
	}, logger)
	retryPolicy := services.RetryPolicy{
		MaxRetries:    cfg.Resilience.MaxRetries,
		InitialDelay:  cfg.Resilience.InitialRetryDelay,
		MaxDelay:      cfg.Resilience.MaxRetryDelay,
		BackoffFactor: cfg.Resilience.BackoffFactor,
	}
	gateway := services.NewMarketGateway(
		client,
		tickerCache,
		limiter,
		breakers,
		retryPolicy,
		decimal.NewFromFloat(cfg.Trading.DefaultTakerFee),
		logger,
		tracer,
	)

	// Detection pipeline.
	graph := services.NewCurrencyGraph()
	pathFinder := services.NewPathFinder(cfg.Trading.BaseCurrencies, logger)
	scorer := services.NewOpportunityScorer(services.ScorerConfig{
		MinProfitThreshold:       decimal.NewFromFloat(cfg.Trading.MinProfitThreshold),
		StartAmount:              decimal.NewFromFloat(cfg.Trading.MaxPositionSize),
		LowLiquidityThreshold:    decimal.NewFromFloat(cfg.Trading.LowLiquidityThreshold),
		MediumLiquidityThreshold: decimal.NewFromFloat(cfg.Trading.MediumLiquidityThreshold),
	}, logger)

	// Execution.
	tradeBudget := services.NewRateBudget(cfg.Risk.MaxTradesPerHour, time.Hour, nil)
	executor := services.NewTradeExecutor(gateway, tradeBudget, services.ExecutorConfig{
		Venue:              cfg.Trading.Venue,
		MinProfitThreshold: decimal.NewFromFloat(cfg.Trading.MinProfitThreshold),
		FreshnessWindow:    cfg.Trading.FreshnessWindow,
	}, logger, tracer)

	notifier, err := services.NewTelegramNotifier(services.NotifierConfig{
		BotToken:         cfg.Telegram.BotToken,
		ChatID:           cfg.Telegram.ChatID,
		MinProfitAlert:   decimal.NewFromFloat(cfg.Telegram.MinProfitAlert),
		MaxAlertsPerHour: cfg.Telegram.MaxAlertsPerHour,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize telegram notifier")
	}

	scanner := services.NewMarketScanner(
		gateway,
		graph,
		pathFinder,
		scorer,
		executor,
		services.ScannerConfig{
			Venue:          cfg.Trading.Venue,
			BaseCurrencies: cfg.Trading.BaseCurrencies,
			ScanInterval:   cfg.Trading.ScanInterval,
			PaperTrading:   cfg.Risk.PaperTrading,
		},
		&snapshotFanout{repository: repository, cache: snapshotCache},
		repository,
		notifier,
		logger,
		tracer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scanner.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start market scanner")
	}
	defer scanner.Stop()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.Dependencies{
		DB:         db,
		Redis:      redisClient,
		Repository: repository,
		Scanner:    scanner,
		Gateway:    gateway,
		Executor:   executor,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server forced to shutdown")
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Telemetry shutdown failed")
	}

	logger.Info("Shutdown complete")
}

// snapshotFanout persists each snapshot to Postgres and publishes it to Redis
// for monitoring readers. The Redis write is best-effort.
type snapshotFanout struct {
	repository *database.Repository
	cache      *cache.RedisSnapshotCache
}

func (f *snapshotFanout) SaveSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error {
	_ = f.cache.SetLatest(ctx, snapshot)
	return f.repository.SaveSnapshot(ctx, snapshot)
}
