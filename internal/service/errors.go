package service

import (
	"errors"

	"github.com/navid-fn/tradequeue/internal/repository"
)

var (
	ErrAlreadyQueued    = errors.New("requester already has a pending trade request")
	ErrUnknownAsset     = errors.New("unknown asset")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidMetric    = errors.New("metric must be greater than zero")
	ErrSameAsset        = errors.New("from and to asset must differ")
	ErrInvalidAssetName = errors.New("asset name is required")
	ErrInvalidRequester = errors.New("requester id is required")

	// Store level conditions surface unchanged so callers match one value.
	ErrNotFound         = repository.ErrNotFound
	ErrDuplicateAsset   = repository.ErrDuplicateAsset
	ErrStoreUnavailable = repository.ErrStoreUnavailable
)
