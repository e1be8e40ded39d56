package repository

import (
	"context"
	"errors"

	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetRepository stores assets keyed by normalized name.
// Callers pass names that are already normalized.
type AssetRepository interface {
	// Create inserts a new asset. Returns ErrDuplicateAsset if the name is taken.
	Create(ctx context.Context, asset *model.Asset) error

	// UpdateMetric sets the metric of an existing asset. Returns ErrNotFound if missing.
	UpdateMetric(ctx context.Context, name string, metric decimal.Decimal) (*model.Asset, error)

	// Get returns nil, nil when the asset does not exist.
	Get(ctx context.Context, name string) (*model.Asset, error)

	// List returns all assets ordered by name.
	List(ctx context.Context) ([]model.Asset, error)
}

type gormAssetRepository struct {
	db *gorm.DB
}

func NewGormAssetRepository(db *gorm.DB) AssetRepository {
	return &gormAssetRepository{db: db}
}

func (r *gormAssetRepository) Create(ctx context.Context, asset *model.Asset) error {
	err := r.db.WithContext(ctx).Create(asset).Error
	if isDuplicateKey(err) {
		return ErrDuplicateAsset
	}
	if err != nil {
		return storeError("create asset", err)
	}
	return nil
}

func (r *gormAssetRepository) UpdateMetric(ctx context.Context, name string, metric decimal.Decimal) (*model.Asset, error) {
	var asset model.Asset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Asset{}).Where("name = ?", name).Update("metric", metric)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("name = ?", name).Take(&asset).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError("update metric", err)
	}
	return &asset, nil
}

func (r *gormAssetRepository) Get(ctx context.Context, name string) (*model.Asset, error) {
	var asset model.Asset
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get asset", err)
	}
	return &asset, nil
}

func (r *gormAssetRepository) List(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset
	if err := r.db.WithContext(ctx).Order("name").Find(&assets).Error; err != nil {
		return nil, storeError("list assets", err)
	}
	return assets, nil
}
