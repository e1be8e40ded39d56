package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/navid-fn/tradequeue/configs"
	"github.com/navid-fn/tradequeue/internal/faulttolerance"
	"github.com/navid-fn/tradequeue/internal/ingester"
	"github.com/navid-fn/tradequeue/internal/storage"
)

func main() {
	appConfig := configs.AppLoad()
	logger := configs.NewLogger(appConfig.LogLevel)

	if appConfig.KafkaEvent.Broker == "" {
		logger.Error("KAFKA_BROKER is required for the ingester")
		os.Exit(1)
	}

	eventStorage, err := storage.NewClickHouseStorage(appConfig.ClickHouseDSN)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to ClickHouse")
		os.Exit(1)
	}
	defer eventStorage.Close()

	// Offsets are committed manually by the ingester after each insert.
	kafkaReader := ingester.NewKafkaReader(
		appConfig.KafkaEvent.Broker,
		appConfig.KafkaEvent.Topic,
		appConfig.KafkaEvent.GroupID,
	)
	defer kafkaReader.Close()

	svc := ingester.NewIngester(
		kafkaReader,
		eventStorage,
		logger,
		ingester.Config{
			BatchSize:    appConfig.Ingester.BatchSize,
			BatchTimeout: time.Duration(appConfig.Ingester.BatchTimeoutSeconds) * time.Second,
		},
	)

	// Run with Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Status changes of the ClickHouse check are logged by the monitor.
	monitor := faulttolerance.NewHealthMonitor(logger, 30*time.Second)
	svc.RegisterHealthChecks(monitor)
	monitor.Start(ctx)

	logger.WithField("topic", appConfig.KafkaEvent.Topic).Info("Ingester started successfully")

	err = svc.Start(ctx)
	stop()
	monitor.Wait()
	if err != nil {
		logger.WithError(err).Error("Ingester stopped with error")
		os.Exit(1)
	}

	logger.Info("Ingester shutdown complete")
}
