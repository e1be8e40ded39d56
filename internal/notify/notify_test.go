package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/navid-fn/tradequeue/internal/faulttolerance"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// blockingWriter holds every write until release is closed or the write
// context ends.
type blockingWriter struct {
	release chan struct{}
	writes  atomic.Int64
}

func (w *blockingWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	w.writes.Add(1)
	select {
	case <-w.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *blockingWriter) Close() error { return nil }

func sampleEvent() model.QueueEvent {
	amount := decimal.NewFromInt(3)
	quote := decimal.NewFromInt(30)
	return model.QueueEvent{
		ID:          "evt-1",
		Type:        model.EventTradeSubmitted,
		RequesterID: "u1",
		TradeID:     "trade-1",
		FromAsset:   "gold",
		ToAsset:     "silver",
		Amount:      &amount,
		Quote:       &quote,
		OccurredAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPublisherWritesKeyedJSON(t *testing.T) {
	writer := &fakeWriter{}
	breaker := faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{Name: "kafka"}, quietLogger())
	p := NewPublisher(writer, breaker, quietLogger())

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "u1", string(writer.messages[0].Key))

	var decoded model.QueueEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, model.EventTradeSubmitted, decoded.Type)
	assert.True(t, decoded.Quote.Equal(decimal.NewFromInt(30)))

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPublisherAssetEventsKeyedByAsset(t *testing.T) {
	writer := &fakeWriter{}
	breaker := faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{}, quietLogger())
	p := NewPublisher(writer, breaker, quietLogger())

	p.Notify(context.Background(), model.QueueEvent{ID: "e", Type: model.EventAssetCreated, Asset: "gold"})
	require.NoError(t, p.Close())
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "gold", string(writer.messages[0].Key))
}

func TestPublisherOpensBreaker(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	breaker := faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour}, quietLogger())
	p := NewPublisher(writer, breaker, quietLogger())

	require.NoError(t, p.Healthy(context.Background()))

	// Notify swallows failures.
	p.Notify(context.Background(), sampleEvent())
	p.Notify(context.Background(), sampleEvent())
	require.Eventually(t, func() bool {
		return breaker.State() == faulttolerance.StateOpen
	}, 2*time.Second, 5*time.Millisecond)

	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, faulttolerance.ErrCircuitBreakerOpen)
	assert.ErrorIs(t, p.Healthy(context.Background()), faulttolerance.ErrDegraded)
}

func TestPublisherNotifyDoesNotWaitForKafka(t *testing.T) {
	writer := &blockingWriter{release: make(chan struct{})}
	breaker := faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{}, quietLogger())
	p := NewPublisher(writer, breaker, quietLogger())

	start := time.Now()
	for i := 0; i < 3; i++ {
		p.Notify(context.Background(), sampleEvent())
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	require.Eventually(t, func() bool { return writer.writes.Load() == 1 }, time.Second, 5*time.Millisecond)

	close(writer.release)
	require.NoError(t, p.Close())
	assert.Equal(t, int64(3), writer.writes.Load())
	assert.Zero(t, p.Dropped())
}

func TestPublisherDropsWhenBufferFull(t *testing.T) {
	writer := &blockingWriter{release: make(chan struct{})}
	breaker := faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{}, quietLogger())
	p := NewPublisher(writer, breaker, quietLogger())

	// The first event occupies the writer, the next PublishQueueSize fill the buffer.
	p.Notify(context.Background(), sampleEvent())
	require.Eventually(t, func() bool { return writer.writes.Load() == 1 }, time.Second, 5*time.Millisecond)
	for i := 0; i < PublishQueueSize+2; i++ {
		p.Notify(context.Background(), sampleEvent())
	}
	assert.Equal(t, int64(2), p.Dropped())

	close(writer.release)
	require.NoError(t, p.Close())
	assert.Equal(t, int64(PublishQueueSize+1), writer.writes.Load())

	p.Notify(context.Background(), sampleEvent())
	assert.Equal(t, int64(3), p.Dropped(), "events after Close are dropped")
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(quietLogger())
	id1, ch1 := hub.Subscribe()
	_, ch2 := hub.Subscribe()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Notify(context.Background(), sampleEvent())
	assert.Equal(t, "evt-1", (<-ch1).ID)
	assert.Equal(t, "evt-1", (<-ch2).ID)

	hub.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "unsubscribed channel must be closed")
	assert.Equal(t, 1, hub.Subscribers())

	hub.Unsubscribe(id1)
}

func TestHubDropsLaggingSubscriber(t *testing.T) {
	hub := NewHub(quietLogger())
	_, ch := hub.Subscribe()

	for i := 0; i < subscriberSize+1; i++ {
		hub.Broadcast(sampleEvent())
	}
	assert.Equal(t, 0, hub.Subscribers())

	received := 0
	for range ch {
		received++
	}
	assert.Equal(t, subscriberSize, received)
}

func TestFanout(t *testing.T) {
	hub1 := NewHub(quietLogger())
	hub2 := NewHub(quietLogger())
	_, ch1 := hub1.Subscribe()
	_, ch2 := hub2.Subscribe()

	Fanout{hub1, hub2}.Notify(context.Background(), sampleEvent())
	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 1)
}

func TestHubServeStreamsEvents(t *testing.T) {
	hub := NewHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upgrader := websocket.Upgrader{}
	served := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(ctx, conn)
		close(served)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(sampleEvent())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.QueueEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "trade-1", got.TradeID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after client close")
	}
	assert.Equal(t, 0, hub.Subscribers())
}
