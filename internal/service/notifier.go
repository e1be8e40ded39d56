package service

import (
	"context"

	"github.com/navid-fn/tradequeue/internal/model"
)

// Notifier receives an event after every successful mutation.
// Implementations must not block for long and must not fail the caller.
type Notifier interface {
	Notify(ctx context.Context, event model.QueueEvent)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, model.QueueEvent) {}
