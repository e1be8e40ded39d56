// Package storage persists the queue event audit trail to ClickHouse.
package storage

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EventStorage persists batches of queue events.
// Implementations must be safe for concurrent use.
type EventStorage interface {
	// CreateEvents inserts a batch of events. Re-inserting an event id is
	// harmless; the table collapses duplicates on merge.
	CreateEvents(ctx context.Context, events []*model.QueueEvent) error

	// Ping verifies the connection.
	Ping(ctx context.Context) error

	// Close releases database connection resources.
	Close() error
}

// clickhouseStorage implements EventStorage using native ClickHouse driver.
type clickhouseStorage struct {
	conn driver.Conn
}

// NewClickHouseStorage parses the DSN, opens a connection, and verifies
// connectivity with a ping. Returns an error if connection cannot be
// established within 5 seconds.
func NewClickHouseStorage(dsn string) (EventStorage, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &clickhouseStorage{conn: conn}, nil
}

// CreateEvents inserts events using ClickHouse batch insert.
// All events in the batch share the same inserted_at timestamp.
func (s *clickhouseStorage) CreateEvents(ctx context.Context, events []*model.QueueEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_event (
			event_id, event_type, requester_id, trade_id,
			asset, from_asset, to_asset,
			amount, quote, metric,
			occurred_at, inserted_at
		)
	`)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, e := range events {
		err := batch.Append(
			e.ID,
			string(e.Type),
			e.RequesterID,
			e.TradeID,
			e.Asset,
			e.FromAsset,
			e.ToAsset,
			e.Amount,
			e.Quote,
			e.Metric,
			e.OccurredAt,
			now,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append event %s: %w", e.ID, err)
		}
	}

	return batch.Send()
}

func (s *clickhouseStorage) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the ClickHouse connection.
func (s *clickhouseStorage) Close() error {
	return s.conn.Close()
}

// Migrate creates the audit table with goose's clickhouse dialect.
func Migrate(dsn string, logger logrus.FieldLogger) error {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return err
	}
	db := clickhouse.OpenDB(opts)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(logger)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("goose: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose: up: %w", err)
	}
	return nil
}
