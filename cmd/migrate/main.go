package main

import (
	"context"
	"flag"
	"os"

	"github.com/navid-fn/tradequeue/configs"
	"github.com/navid-fn/tradequeue/internal/faulttolerance"
	"github.com/navid-fn/tradequeue/internal/repository"
	"github.com/navid-fn/tradequeue/internal/storage"
)

func main() {
	clickhouseFlag := flag.Bool("clickhouse", false, "Also create the ClickHouse audit table")
	flag.Parse()

	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	retryer := faulttolerance.NewRetryer(faulttolerance.DefaultRetryConfig("db-connect"), logger)
	err := retryer.Execute(context.Background(), func(context.Context) error {
		db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN(), logger)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}()

		logger.WithField("driver", cfg.Database.Driver).Info("Running database migrations...")
		return faulttolerance.Permanent(repository.Migrate(db, cfg.Database.Driver, logger))
	})
	if err != nil {
		logger.WithError(err).Error("Database migration failed")
		os.Exit(1)
	}

	if *clickhouseFlag {
		logger.Info("Running ClickHouse migrations...")
		if err := storage.Migrate(cfg.ClickHouseDSN, logger); err != nil {
			logger.WithError(err).Error("ClickHouse migration failed")
			os.Exit(1)
		}
	}

	logger.Info("Migrations completed successfully")
}
