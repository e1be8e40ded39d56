package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/sirupsen/logrus"
)

const (
	WriteTimeout   = 10 * time.Second
	PongTimeout    = 60 * time.Second
	PingInterval   = 30 * time.Second
	subscriberSize = 64
)

// Hub fans queue events out to websocket subscribers. A subscriber whose
// buffer is full is dropped rather than stalling the broadcaster.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int64]chan model.QueueEvent
	seq    atomic.Int64
	logger logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		subs:   make(map[int64]chan model.QueueEvent),
		logger: logger,
	}
}

func (h *Hub) Subscribe() (int64, <-chan model.QueueEvent) {
	id := h.seq.Add(1)
	ch := make(chan model.QueueEvent, subscriberSize)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Broadcast(event model.QueueEvent) {
	var lagging []int64

	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	if len(lagging) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range lagging {
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
			h.logger.WithField("subscriber", id).Warn("Disconnected lagging queue feed subscriber")
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Notify(_ context.Context, event model.QueueEvent) {
	h.Broadcast(event)
}

// Serve streams events to conn until the client disconnects, the subscriber
// is dropped, or ctx is done. It closes conn before returning.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	id, events := h.Subscribe()
	defer h.Unsubscribe(id)
	defer conn.Close()

	logger := h.logger.WithField("subscriber", id)
	logger.Info("Queue feed subscriber connected")

	// The read loop only exists to process control frames and notice closes.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongTimeout))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithError(err).Debug("Queue feed read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(WriteTimeout))
			return
		case <-closed:
			logger.Info("Queue feed subscriber disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				logger.WithError(err).Warn("Queue feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
				return
			}
		}
	}
}
