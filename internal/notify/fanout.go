package notify

import (
	"context"

	"github.com/navid-fn/tradequeue/internal/model"
)

// Notifier matches service.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event model.QueueEvent)
}

// Fanout delivers each event to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, event model.QueueEvent) {
	for _, n := range f {
		n.Notify(ctx, event)
	}
}
