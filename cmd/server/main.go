// Package main is the entry point of the parkpay API server.
// It wires storage, cache, event sinks and services, mounts the routes and
// shuts everything down in order on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"parkpay/internal/config"
	"parkpay/internal/handlers"
	"parkpay/internal/logging"
	"parkpay/internal/metrics"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
	"parkpay/internal/repositories/cache"
	"parkpay/internal/repositories/memory"
	"parkpay/internal/routes"
	"parkpay/internal/services/ledger"
	"parkpay/internal/services/limits"
	"parkpay/internal/services/notification"
	"parkpay/internal/services/paymentrequest"
	"parkpay/internal/services/transfer"
	"parkpay/internal/services/wallet"
	"parkpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(registry)
	checks := map[string]handlers.Pinger{}

	// Storage
	var store repositories.Store
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory store; balances are lost on restart")
		store = memory.NewStore()
	case "postgres":
		db, err := repositories.InitDB(cfg.Database, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := repositories.CloseDB(db); err != nil {
				logger.Warn("failed to close database", zap.Error(err))
			}
		}()
		store = repositories.NewStore(db)
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", cfg.Database.Driver)
	}
	checks["database"] = store.Ping

	// Cache and redis event sink share one client.
	var (
		walletCache wallet.Cache = cache.Noop{}
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient = cache.NewRedisClient(cfg.Redis)
		cacheService := cache.NewCacheService(redisClient, cfg.Redis.TTL)
		if err := cacheService.HealthCheck(ctx); err != nil {
			logger.Warn("redis unreachable at startup; reads fall back to the database", zap.Error(err))
		}
		defer func() {
			if err := cacheService.Close(); err != nil {
				logger.Warn("failed to close redis", zap.Error(err))
			}
		}()
		walletCache = cacheService
		checks["redis"] = cacheService.HealthCheck
	}

	sinks := []notification.Sink{notification.NewLogSink(logger.Named("events"))}
	if redisClient != nil {
		sinks = append(sinks, notification.NewRedisSink(redisClient))
	}
	if cfg.NATS.Enabled {
		natsSink, err := notification.NewNATSSink(ctx, cfg.NATS, logger.Named("nats"))
		if err != nil {
			return err
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
		checks["nats"] = func(context.Context) error { return natsSink.HealthCheck() }
	}
	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		QueueSize:   cfg.Events.QueueSize,
		MaxAttempts: cfg.Events.MaxAttempts,
		RetryBase:   cfg.Events.RetryBase,
	}, logger.Named("dispatcher"), collector, sinks...)

	// Services
	loc, err := cfg.Transfer.Location()
	if err != nil {
		return err
	}
	retry := repositories.RetryPolicy{MaxAttempts: cfg.Transfer.MaxAttempts, BaseDelay: cfg.Transfer.RetryBase}
	book := ledger.New(store)

	walletService := wallet.NewService(store, walletCache, book, wallet.WalletConfig{
		DefaultCurrency: cfg.Wallet.DefaultCurrency,
		DefaultLimits: models.WalletLimits{
			Daily:   cfg.Wallet.DefaultDailyLimit,
			Monthly: cfg.Wallet.DefaultMonthlyLimit,
			Single:  cfg.Wallet.DefaultSingleTxnLimit,
		},
		RetryPolicy: retry,
	}, collector, logger.Named("wallet"))

	transferService := transfer.NewService(store, book, limits.NewEnforcer(loc), walletCache, dispatcher, transfer.Config{
		RetryPolicy:         retry,
		SandboxBanking:      cfg.Transfer.SandboxBanking(),
		WithdrawalFeeBPS:    cfg.Transfer.WithdrawalFeeBPS,
		PlatformFeeWalletID: cfg.Transfer.PlatformFeeWalletID,
	}, collector, logger.Named("transfer"))

	requestService := paymentrequest.NewService(store, transferService, paymentrequest.Config{
		DefaultTTL: cfg.Payment.DefaultTTL,
		MaxTTL:     cfg.Payment.MaxTTL,
		QRBaseURL:  cfg.Payment.QRBaseURL,
	}, collector, logger.Named("payment_request"))

	if cfg.SystemKeyHash == "" {
		logger.Warn("SYSTEM_KEY_HASH not set; system routes will reject every call")
	}

	// HTTP
	app := fiber.New(fiber.Config{
		AppName: "parkpay " + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return response.Error(c, fe.Code, response.CodeBadRequest, fe.Message)
			}
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			return response.ServerError(c)
		},
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-System-Key",
		AllowMethods: "GET,POST,HEAD,PUT",
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		Wallets:         walletService,
		Transfers:       transferService,
		PaymentRequests: requestService,
		JWTSecret:       cfg.JWTSecret,
		SystemKeyHash:   cfg.SystemKeyHash,
		Gatherer:        registry,
		HealthChecks:    checks,
		Version:         version,
		RateLimit:       cfg.RateLimit,
		Logger:          logger.Named("http"),
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		serveErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	// Drain queued events before the sinks are closed by the deferred calls.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("event queue not fully drained", zap.Error(err))
	}
	return nil
}
