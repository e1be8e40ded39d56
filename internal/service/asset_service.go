package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/navid-fn/tradequeue/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MaxSuggestions caps the autocomplete list.
const MaxSuggestions = 25

// AssetService is the asset registry: named assets and their metrics.
type AssetService struct {
	repo     repository.AssetRepository
	notifier Notifier
	logger   logrus.FieldLogger
}

func NewAssetService(repo repository.AssetRepository, notifier Notifier, logger logrus.FieldLogger) *AssetService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &AssetService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateAsset registers a new asset. A nil metric defaults to 1.
func (s *AssetService) CreateAsset(ctx context.Context, name string, metric *decimal.Decimal) (*model.Asset, error) {
	name = model.NormalizeAssetName(name)
	if name == "" {
		return nil, ErrInvalidAssetName
	}

	value := decimal.NewFromInt(1)
	if metric != nil {
		value = *metric
	}
	if !value.IsPositive() {
		return nil, ErrInvalidMetric
	}

	asset := &model.Asset{Name: name, Metric: value}
	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"asset": name, "metric": value.String()}).Info("Asset created")
	s.notifier.Notify(ctx, model.QueueEvent{
		ID:         uuid.NewString(),
		Type:       model.EventAssetCreated,
		Asset:      name,
		Metric:     &value,
		OccurredAt: time.Now().UTC(),
	})
	return asset, nil
}

// UpdateMetric changes the metric of an existing asset. Queued requests keep
// the metrics they were submitted with.
func (s *AssetService) UpdateMetric(ctx context.Context, name string, metric decimal.Decimal) (*model.Asset, error) {
	name = model.NormalizeAssetName(name)
	if !metric.IsPositive() {
		return nil, ErrInvalidMetric
	}

	asset, err := s.repo.UpdateMetric(ctx, name, metric)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"asset": name, "metric": metric.String()}).Info("Asset metric updated")
	s.notifier.Notify(ctx, model.QueueEvent{
		ID:         uuid.NewString(),
		Type:       model.EventAssetMetricUpdated,
		Asset:      name,
		Metric:     &metric,
		OccurredAt: time.Now().UTC(),
	})
	return asset, nil
}

// GetAsset returns nil, nil when no asset has that name.
func (s *AssetService) GetAsset(ctx context.Context, name string) (*model.Asset, error) {
	return s.repo.Get(ctx, model.NormalizeAssetName(name))
}

func (s *AssetService) ListAssets(ctx context.Context) ([]model.Asset, error) {
	return s.repo.List(ctx)
}

// SuggestAssets returns up to MaxSuggestions asset names starting with
// partial, ignoring case. exclude, if set, is left out of the result.
func (s *AssetService) SuggestAssets(ctx context.Context, partial, exclude string) ([]string, error) {
	assets, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	prefix := strings.ToLower(partial)
	exclude = model.NormalizeAssetName(exclude)

	names := make([]string, 0, MaxSuggestions)
	for _, asset := range assets {
		if exclude != "" && asset.Name == exclude {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(asset.Name), prefix) {
			continue
		}
		names = append(names, asset.Name)
		if len(names) == MaxSuggestions {
			break
		}
	}
	return names, nil
}
