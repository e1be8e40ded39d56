package ingester

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/navid-fn/tradequeue/internal/faulttolerance"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeStorage struct {
	mu       sync.Mutex
	batches  [][]*model.QueueEvent
	failures int
	pingErr  error
}

func (s *fakeStorage) CreateEvents(_ context.Context, events []*model.QueueEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("clickhouse unavailable")
	}
	s.batches = append(s.batches, append([]*model.QueueEvent(nil), events...))
	return nil
}

func (s *fakeStorage) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *fakeStorage) Close() error { return nil }

func (s *fakeStorage) eventIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, batch := range s.batches {
		for _, e := range batch {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func message(t *testing.T, offset int64, event model.QueueEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: data}
}

func submitted(id, requester string) model.QueueEvent {
	amount := decimal.NewFromInt(2)
	return model.QueueEvent{
		ID:          id,
		Type:        model.EventTradeSubmitted,
		RequesterID: requester,
		TradeID:     "trade-" + id,
		FromAsset:   "gold",
		ToAsset:     "silver",
		Amount:      &amount,
		OccurredAt:  time.Now().UTC(),
	}
}

func runIngester(t *testing.T, reader *fakeReader, store *fakeStorage, cfg Config, until func() bool) {
	t.Helper()

	ig := NewIngester(reader, store, quietLogger(), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ig.Start(ctx) }()

	require.Eventually(t, until, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ingester did not stop")
	}
}

func TestIngesterBatchesAndCommits(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{
		message(t, 1, submitted("e1", "u1")),
		message(t, 2, submitted("e2", "u2")),
		{Offset: 3, Value: []byte("not json")},
		message(t, 4, submitted("e3", "u3")),
	}}
	store := &fakeStorage{}

	runIngester(t, reader, store, Config{BatchSize: 2, BatchTimeout: 20 * time.Millisecond},
		func() bool { return reader.committedCount() == 4 })

	assert.Equal(t, []string{"e1", "e2", "e3"}, store.eventIDs())
}

func TestIngesterRetriesBeforeCommit(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{message(t, 1, submitted("e1", "u1"))}}
	store := &fakeStorage{failures: 2}

	runIngester(t, reader, store, Config{BatchSize: 1, BatchTimeout: 20 * time.Millisecond, RetryDelay: time.Millisecond},
		func() bool { return reader.committedCount() == 1 })

	assert.Equal(t, []string{"e1"}, store.eventIDs())
}

func TestIngesterFlushesOnShutdown(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{message(t, 1, submitted("e1", "u1"))}}
	store := &fakeStorage{}

	ig := NewIngester(reader, store, quietLogger(), Config{BatchSize: 100, BatchTimeout: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ig.Start(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.pending) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, []string{"e1"}, store.eventIDs())
	assert.Equal(t, 1, reader.committedCount())
}

func TestParseEvent(t *testing.T) {
	metric := decimal.NewFromInt(3)
	tests := []struct {
		name    string
		event   model.QueueEvent
		wantErr bool
	}{
		{"trade event", submitted("e1", "u1"), false},
		{"asset event", model.QueueEvent{ID: "e2", Type: model.EventAssetMetricUpdated, Asset: "gold", Metric: &metric}, false},
		{"missing id", model.QueueEvent{Type: model.EventTradeRemoved, RequesterID: "u1"}, true},
		{"trade without requester", model.QueueEvent{ID: "e3", Type: model.EventTradePrioritized}, true},
		{"asset without name", model.QueueEvent{ID: "e4", Type: model.EventAssetCreated}, true},
		{"unknown type", model.QueueEvent{ID: "e5", Type: "trade.settled", RequesterID: "u1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)

			event, err := ParseEvent(data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.event.ID, event.ID)
			assert.False(t, event.OccurredAt.IsZero())
		})
	}

	_, err := ParseEvent([]byte("{"))
	assert.Error(t, err)
}

func TestIngesterHealthCheckPingsStorage(t *testing.T) {
	store := &fakeStorage{}
	ig := NewIngester(&fakeReader{}, store, quietLogger(), Config{})

	hm := faulttolerance.NewHealthMonitor(quietLogger(), time.Hour)
	ig.RegisterHealthChecks(hm)

	hm.RunChecks(context.Background())
	assert.Equal(t, faulttolerance.HealthStatusHealthy, hm.GetOverallHealth())

	store.mu.Lock()
	store.pingErr = errors.New("connection refused")
	store.mu.Unlock()

	hm.RunChecks(context.Background())
	assert.Equal(t, faulttolerance.HealthStatusUnhealthy, hm.GetOverallHealth())
	assert.Equal(t, "connection refused", hm.GetHealth()["clickhouse"].Error)
}
