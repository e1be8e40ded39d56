package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/shopspring/decimal"
)

type memoryAssetRepository struct {
	assets map[string]model.Asset
	mutex  sync.RWMutex
}

// NewMemoryAssetRepository returns an in-process AssetRepository.
func NewMemoryAssetRepository() AssetRepository {
	return &memoryAssetRepository{assets: make(map[string]model.Asset)}
}

func (r *memoryAssetRepository) Create(_ context.Context, asset *model.Asset) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.assets[asset.Name]; exists {
		return ErrDuplicateAsset
	}
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	r.assets[asset.Name] = *asset
	return nil
}

func (r *memoryAssetRepository) UpdateMetric(_ context.Context, name string, metric decimal.Decimal) (*model.Asset, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	asset, exists := r.assets[name]
	if !exists {
		return nil, ErrNotFound
	}
	asset.Metric = metric
	asset.UpdatedAt = time.Now().UTC()
	r.assets[name] = asset
	return &asset, nil
}

func (r *memoryAssetRepository) Get(_ context.Context, name string) (*model.Asset, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	asset, exists := r.assets[name]
	if !exists {
		return nil, nil
	}
	return &asset, nil
}

func (r *memoryAssetRepository) List(_ context.Context) ([]model.Asset, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	assets := make([]model.Asset, 0, len(r.assets))
	for _, asset := range r.assets {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

// memoryQueueStore guards the whole queue with one mutex, held for the
// check and the mutation of every operation.
type memoryQueueStore struct {
	requests map[string]*model.TradeRequest // by id
	active   map[string]string              // requester id -> queued request id
	seq      int64
	mutex    sync.Mutex
}

// NewMemoryQueueStore returns an in-process QueueStore.
func NewMemoryQueueStore() QueueStore {
	return &memoryQueueStore{
		requests: make(map[string]*model.TradeRequest),
		active:   make(map[string]string),
	}
}

func (s *memoryQueueStore) HasActiveRequest(_ context.Context, requesterID string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, exists := s.active[requesterID]
	return exists, nil
}

func (s *memoryQueueStore) Enqueue(_ context.Context, request *model.TradeRequest) (*model.TradeRequest, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.active[request.RequesterID]; exists {
		return nil, ErrDuplicateActiveRequest
	}

	s.seq++
	now := time.Now().UTC()
	row := *request
	row.Status = model.StatusQueued
	row.Rank = 0
	row.Seq = s.seq
	row.CreatedAt = now
	row.UpdatedAt = now

	s.requests[row.ID] = &row
	s.active[row.RequesterID] = row.ID

	out := row
	return &out, nil
}

func (s *memoryQueueStore) ListQueued(_ context.Context) ([]model.TradeRequest, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	queued := make([]model.TradeRequest, 0, len(s.active))
	for _, id := range s.active {
		queued = append(queued, *s.requests[id])
	}
	sort.Slice(queued, func(i, j int) bool { return model.QueueOrderLess(&queued[i], &queued[j]) })
	return queued, nil
}

func (s *memoryQueueStore) GetActiveRequest(_ context.Context, requesterID string) (*model.TradeRequest, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, exists := s.active[requesterID]
	if !exists {
		return nil, nil
	}
	out := *s.requests[id]
	return &out, nil
}

func (s *memoryQueueStore) Promote(_ context.Context, requesterID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, exists := s.active[requesterID]
	if !exists {
		return ErrNotFound
	}

	var minRank int64
	for _, queuedID := range s.active {
		if rank := s.requests[queuedID].Rank; rank < minRank {
			minRank = rank
		}
	}

	request := s.requests[id]
	request.Rank = minRank - 1
	request.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryQueueStore) Remove(_ context.Context, requesterID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, exists := s.active[requesterID]
	if !exists {
		return ErrNotFound
	}

	request := s.requests[id]
	request.Status = model.StatusRemoved
	request.UpdatedAt = time.Now().UTC()
	delete(s.active, requesterID)
	return nil
}
