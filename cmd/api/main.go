package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/configs"
	"github.com/navid-fn/tradequeue/internal/faulttolerance"
	"github.com/navid-fn/tradequeue/internal/handler"
	"github.com/navid-fn/tradequeue/internal/notify"
	"github.com/navid-fn/tradequeue/internal/repository"
	"github.com/navid-fn/tradequeue/internal/router"
	"github.com/navid-fn/tradequeue/internal/service"
	"gorm.io/gorm"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before serving")
	flag.Parse()

	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	retryer := faulttolerance.NewRetryer(faulttolerance.DefaultRetryConfig("db-connect"), logger)
	err := retryer.Execute(ctx, func(context.Context) error {
		var err error
		db, err = repository.Open(cfg.Database.Driver, cfg.Database.DSN(), logger)
		return err
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithError(err).Error("Failed to get sql.DB")
		os.Exit(1)
	}
	defer sqlDB.Close()

	if *migrateFlag {
		logger.Info("Running database migrations...")
		if err := repository.Migrate(db, cfg.Database.Driver, logger); err != nil {
			logger.WithError(err).Error("Database migration failed")
			os.Exit(1)
		}
	}

	monitor := faulttolerance.NewHealthMonitor(logger, 15*time.Second)
	monitor.AddCheck("database", sqlDB.PingContext)

	hub := notify.NewHub(logger)
	notifiers := notify.Fanout{hub}
	if cfg.KafkaEvent.Broker != "" {
		breaker := faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{
			Name:        "kafka-publisher",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}, logger)
		publisher := notify.NewPublisher(notify.NewKafkaWriter(cfg.KafkaEvent.Broker, cfg.KafkaEvent.Topic), breaker, logger)
		defer publisher.Close()

		notifiers = append(notifiers, publisher)
		monitor.AddCheck("kafka-publisher", publisher.Healthy)
		logger.WithField("topic", cfg.KafkaEvent.Topic).Info("Publishing queue events to Kafka")
	}

	assetService := service.NewAssetService(repository.NewGormAssetRepository(db), notifiers, logger)
	tradeService := service.NewTradesService(assetService, repository.NewGormQueueStore(db), notifiers, logger)

	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set; admin routes are disabled")
	}

	routerConfig := &router.Config{
		AssetHandler:  handler.NewAssetHandler(assetService),
		TradeHandler:  handler.NewTradeHandler(ctx, tradeService, hub, logger),
		HealthHandler: handler.NewHealthHandler(monitor),
		AdminToken:    cfg.AdminToken,
		SubmitLimiter: handler.NewRequesterLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, logger),
		Logger:        logger,
	}

	monitor.Start(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router.NewRouter(routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("API server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("API server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API server shutdown error")
	}
	monitor.Wait()

	logger.Info("API server shutdown complete")
}
