package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/navid-fn/tradequeue/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AssetLookup resolves an asset by name. Satisfied by *AssetService.
type AssetLookup interface {
	GetAsset(ctx context.Context, name string) (*model.Asset, error)
}

// TradesService coordinates the trade queue. It is the only entry point
// callers use to touch the queue; it performs no authorization.
type TradesService struct {
	assets   AssetLookup
	queue    repository.QueueStore
	notifier Notifier
	logger   logrus.FieldLogger
}

func NewTradesService(assets AssetLookup, queue repository.QueueStore, notifier Notifier, logger logrus.FieldLogger) *TradesService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &TradesService{
		assets:   assets,
		queue:    queue,
		notifier: notifier,
		logger:   logger,
	}
}

// SubmitTrade queues a request to convert amount of from into to, locking in
// both assets' current metrics.
//
// The active-request check up front only gives an early answer; the store's
// atomic check inside Enqueue decides, and losing that race also yields
// ErrAlreadyQueued.
func (ts *TradesService) SubmitTrade(ctx context.Context, requesterID, from, to string, amount decimal.Decimal) (*model.TradeRequest, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, ErrInvalidRequester
	}
	from = model.NormalizeAssetName(from)
	to = model.NormalizeAssetName(to)

	active, err := ts.queue.HasActiveRequest(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrAlreadyQueued
	}

	fromAsset, err := ts.assets.GetAsset(ctx, from)
	if err != nil {
		return nil, err
	}
	toAsset, err := ts.assets.GetAsset(ctx, to)
	if err != nil {
		return nil, err
	}
	if fromAsset == nil || toAsset == nil {
		return nil, ErrUnknownAsset
	}

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if from == to {
		return nil, ErrSameAsset
	}

	request, err := ts.queue.Enqueue(ctx, &model.TradeRequest{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		FromAsset:   from,
		ToAsset:     to,
		Amount:      amount,
		FromMetric:  fromAsset.Metric,
		ToMetric:    toAsset.Metric,
	})
	if errors.Is(err, repository.ErrDuplicateActiveRequest) {
		return nil, ErrAlreadyQueued
	}
	if err != nil {
		return nil, err
	}

	quote := request.Quote()
	ts.logger.WithFields(logrus.Fields{
		"requester": requesterID,
		"trade_id":  request.ID,
		"from":      from,
		"to":        to,
		"amount":    amount.String(),
		"quote":     quote.String(),
	}).Info("Trade request queued")

	ts.notifier.Notify(ctx, model.QueueEvent{
		ID:          uuid.NewString(),
		Type:        model.EventTradeSubmitted,
		RequesterID: requesterID,
		TradeID:     request.ID,
		FromAsset:   from,
		ToAsset:     to,
		Amount:      &request.Amount,
		Quote:       &quote,
		OccurredAt:  time.Now().UTC(),
	})
	return request, nil
}

// GetMyTrade returns the requester's queued request, or nil when there is none.
func (ts *TradesService) GetMyTrade(ctx context.Context, requesterID string) (*model.TradeRequest, error) {
	return ts.queue.GetActiveRequest(ctx, strings.TrimSpace(requesterID))
}

// ListQueue returns the queued requests front to back.
func (ts *TradesService) ListQueue(ctx context.Context) ([]model.TradeRequest, error) {
	return ts.queue.ListQueued(ctx)
}

// Prioritize moves the requester's queued request to the front.
func (ts *TradesService) Prioritize(ctx context.Context, requesterID string) error {
	requesterID = strings.TrimSpace(requesterID)
	if err := ts.queue.Promote(ctx, requesterID); err != nil {
		return err
	}

	ts.logger.WithField("requester", requesterID).Info("Trade request prioritized")
	ts.notifier.Notify(ctx, model.QueueEvent{
		ID:          uuid.NewString(),
		Type:        model.EventTradePrioritized,
		RequesterID: requesterID,
		OccurredAt:  time.Now().UTC(),
	})
	return nil
}

// CancelTrade removes the requester's queued request from the queue.
func (ts *TradesService) CancelTrade(ctx context.Context, requesterID string) error {
	requesterID = strings.TrimSpace(requesterID)
	if err := ts.queue.Remove(ctx, requesterID); err != nil {
		return err
	}

	ts.logger.WithField("requester", requesterID).Info("Trade request removed")
	ts.notifier.Notify(ctx, model.QueueEvent{
		ID:          uuid.NewString(),
		Type:        model.EventTradeRemoved,
		RequesterID: requesterID,
		OccurredAt:  time.Now().UTC(),
	})
	return nil
}
