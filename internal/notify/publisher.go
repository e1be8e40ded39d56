// Package notify delivers queue events to the outside world: a Kafka topic
// for downstream consumers and a websocket feed for admin dashboards.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/navid-fn/tradequeue/internal/faulttolerance"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishQueueSize is how many events Notify buffers before it starts dropping.
const PublishQueueSize = 1024

// Publisher writes queue events to Kafka, keyed by requester so one
// requester's events stay ordered within a partition. Notify only enqueues;
// a single goroutine does the writes.
type Publisher struct {
	writer  MessageWriter
	breaker *faulttolerance.CircuitBreaker
	logger  logrus.FieldLogger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan model.QueueEvent
	done    chan struct{}
	dropped atomic.Int64
}

// NewKafkaWriter builds the writer used for the event topic.
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewPublisher(writer MessageWriter, breaker *faulttolerance.CircuitBreaker, logger logrus.FieldLogger) *Publisher {
	p := &Publisher{
		writer:  writer,
		breaker: breaker,
		logger:  logger,
		timeout: 5 * time.Second,
		queue:   make(chan model.QueueEvent, PublishQueueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.Publish(context.Background(), event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"event_id": event.ID,
				"type":     event.Type,
			}).WithError(err).Warn("Failed to publish queue event")
		}
	}
}

// Publish serializes and sends a single event.
func (p *Publisher) Publish(ctx context.Context, event model.QueueEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize event failed: %w", err)
	}

	key := event.RequesterID
	if key == "" {
		key = event.Asset
	}

	return p.breaker.Execute(func() error {
		writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		if err := p.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
			return fmt.Errorf("kafka write failed: %w", err)
		}
		return nil
	})
}

// Notify hands the event to the publishing goroutine and returns at once.
// The mutation that produced the event has already committed, so a full
// buffer or a closed publisher drops the event instead of blocking.
func (p *Publisher) Notify(_ context.Context, event model.QueueEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.closed {
		select {
		case p.queue <- event:
			return
		default:
		}
	}
	dropped := p.dropped.Add(1)
	p.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"type":     event.Type,
		"dropped":  dropped,
	}).Warn("Queue event dropped, publish buffer full")
}

// Dropped returns how many events Notify has discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Healthy reports ErrDegraded while the breaker is not closed.
func (p *Publisher) Healthy(context.Context) error {
	if state := p.breaker.State(); state != faulttolerance.StateClosed {
		return fmt.Errorf("kafka publisher breaker %s: %w", state, faulttolerance.ErrDegraded)
	}
	return nil
}

// Close stops accepting events, waits for buffered ones to be written and
// closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
