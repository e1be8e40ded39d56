// Package ingester consumes queue events from Kafka and persists them to
// the ClickHouse audit table. It handles batching, retry logic, and graceful
// shutdown.
package ingester

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/navid-fn/tradequeue/internal/faulttolerance"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/navid-fn/tradequeue/internal/storage"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the maximum number of events to accumulate before flushing to DB.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing, even if batch isn't full.
	BatchTimeout time.Duration

	// RetryDelay is the initial backoff after a failed insert.
	RetryDelay time.Duration
}

// MessageReader is the part of *kafka.Reader the ingester uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Ingester consumes events from Kafka and writes them to ClickHouse in
// batches. Offsets are committed only after a successful insert, so delivery
// is at-least-once.
type Ingester struct {
	reader  MessageReader
	storage storage.EventStorage
	retryer *faulttolerance.Retryer
	logger  logrus.FieldLogger
	cfg     Config
}

// NewKafkaReader builds the consumer-group reader for the event topic.
func NewKafkaReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

func NewIngester(reader MessageReader, storage storage.EventStorage, logger logrus.FieldLogger, cfg Config) *Ingester {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	// Never drop data: retry the insert until it succeeds or we shut down.
	retry := faulttolerance.DefaultRetryConfig("clickhouse-insert")
	retry.MaxAttempts = 0
	retry.BaseDelay = cfg.RetryDelay

	return &Ingester{
		reader:  reader,
		storage: storage,
		retryer: faulttolerance.NewRetryer(retry, logger),
		logger:  logger,
		cfg:     cfg,
	}
}

// RegisterHealthChecks adds a ClickHouse connectivity check to hm.
func (ig *Ingester) RegisterHealthChecks(hm *faulttolerance.HealthMonitor) {
	hm.AddCheck("clickhouse", ig.storage.Ping)
}

// Start runs the ingestion loop until ctx is cancelled, then flushes what is
// buffered.
//
// The loop:
//  1. Fetches messages from Kafka
//  2. Parses JSON into QueueEvents
//  3. Accumulates events until batch is full or timeout
//  4. Inserts batch to ClickHouse (with retry on failure)
//  5. Commits Kafka offsets only after successful DB insert
func (ig *Ingester) Start(ctx context.Context) error {
	ig.logger.WithField("batch_size", ig.cfg.BatchSize).Info("Starting event ingester loop")

	batchEvents := make([]*model.QueueEvent, 0, ig.cfg.BatchSize)
	batchMsgs := make([]kafka.Message, 0, ig.cfg.BatchSize)

	ticker := time.NewTicker(ig.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func(ctx context.Context) error {
		if len(batchMsgs) == 0 {
			return nil
		}

		if len(batchEvents) > 0 {
			err := ig.retryer.Execute(ctx, func(ctx context.Context) error {
				return ig.storage.CreateEvents(ctx, batchEvents)
			})
			if err != nil {
				return fmt.Errorf("insert events: %w", err)
			}
		}

		if err := ig.reader.CommitMessages(ctx, batchMsgs...); err != nil {
			ig.logger.WithError(err).Warn("Failed to commit offsets")
		}

		ig.logger.WithFields(logrus.Fields{
			"events":   len(batchEvents),
			"messages": len(batchMsgs),
		}).Debug("Flushed event batch")

		batchEvents = batchEvents[:0]
		batchMsgs = batchMsgs[:0]
		ticker.Reset(ig.cfg.BatchTimeout)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return flush(shutdownCtx)

		case <-ticker.C:
			if err := flush(ctx); err != nil {
				return err
			}

		default:
			// Fetch with short timeout to remain responsive to ticker/shutdown
			fetchCtx, cancel := context.WithTimeout(ctx, ig.cfg.BatchTimeout)
			m, err := ig.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				ig.logger.WithError(err).Error("Kafka fetch error")
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			// Malformed messages are still committed so they do not block the partition.
			batchMsgs = append(batchMsgs, m)
			event, err := ParseEvent(m.Value)
			if err != nil {
				ig.logger.WithFields(logrus.Fields{
					"partition": m.Partition,
					"offset":    m.Offset,
				}).WithError(err).Warn("Skipping invalid queue event")
			} else {
				batchEvents = append(batchEvents, event)
			}

			if len(batchMsgs) >= ig.cfg.BatchSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// ParseEvent decodes and validates a queue event payload.
func ParseEvent(data []byte) (*model.QueueEvent, error) {
	var event model.QueueEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("missing required fields: id=%q type=%q", event.ID, event.Type)
	}

	switch event.Type {
	case model.EventTradeSubmitted, model.EventTradePrioritized, model.EventTradeRemoved:
		if event.RequesterID == "" {
			return nil, fmt.Errorf("%s event %s has no requester", event.Type, event.ID)
		}
	case model.EventAssetCreated, model.EventAssetMetricUpdated:
		if event.Asset == "" {
			return nil, fmt.Errorf("%s event %s has no asset", event.Type, event.ID)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return &event, nil
}
