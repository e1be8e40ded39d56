package repository

import (
	"context"
	"errors"
	"time"

	"github.com/navid-fn/tradequeue/internal/model"
	"gorm.io/gorm"
)

// QueueStore owns the trade requests and their order.
// Every method is atomic with respect to concurrent callers.
type QueueStore interface {
	HasActiveRequest(ctx context.Context, requesterID string) (bool, error)

	// Enqueue appends request to the back of the queue with status queued.
	// The active-request check and the insert are a single step; a requester
	// that already has a queued request gets ErrDuplicateActiveRequest.
	Enqueue(ctx context.Context, request *model.TradeRequest) (*model.TradeRequest, error)

	// ListQueued returns queued requests front to back: promoted requests
	// first, most recently promoted leading, then the rest oldest first.
	ListQueued(ctx context.Context) ([]model.TradeRequest, error)

	// GetActiveRequest returns nil, nil when the requester has no queued request.
	GetActiveRequest(ctx context.Context, requesterID string) (*model.TradeRequest, error)

	// Promote moves the requester's queued request to the front without
	// touching its CreatedAt. Returns ErrNotFound if there is none.
	Promote(ctx context.Context, requesterID string) error

	// Remove marks the requester's queued request removed. Returns ErrNotFound if there is none.
	Remove(ctx context.Context, requesterID string) error
}

const queueOrder = "queue_rank ASC, seq ASC, created_at ASC"

// queueLockKey is the Postgres advisory lock that serializes seq and
// queue_rank allocation.
const queueLockKey int64 = 0x74726164657175

type gormQueueStore struct {
	db *gorm.DB
}

// NewGormQueueStore returns a QueueStore backed by db. The partial unique
// index on requester_id for queued rows is the authoritative duplicate guard.
func NewGormQueueStore(db *gorm.DB) QueueStore {
	return &gormQueueStore{db: db}
}

func (s *gormQueueStore) active(tx *gorm.DB, requesterID string) *gorm.DB {
	return tx.Model(&model.TradeRequest{}).
		Where("requester_id = ? AND status = ?", requesterID, string(model.StatusQueued))
}

// lockQueue makes MAX(seq) and MIN(queue_rank) reads inside tx safe against
// concurrent writers. SQLite needs nothing: its single connection already
// serializes transactions.
func (s *gormQueueStore) lockQueue(tx *gorm.DB) error {
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", queueLockKey).Error
}

func (s *gormQueueStore) HasActiveRequest(ctx context.Context, requesterID string) (bool, error) {
	var count int64
	if err := s.active(s.db.WithContext(ctx), requesterID).Count(&count).Error; err != nil {
		return false, storeError("count active requests", err)
	}
	return count > 0, nil
}

func (s *gormQueueStore) Enqueue(ctx context.Context, request *model.TradeRequest) (*model.TradeRequest, error) {
	row := *request
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockQueue(tx); err != nil {
			return err
		}

		var count int64
		if err := s.active(tx, row.RequesterID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateActiveRequest
		}

		var maxSeq int64
		if err := tx.Model(&model.TradeRequest{}).
			Select("COALESCE(MAX(seq), 0)").
			Row().Scan(&maxSeq); err != nil {
			return err
		}

		now := time.Now().UTC()
		row.Status = model.StatusQueued
		row.Rank = 0
		row.Seq = maxSeq + 1
		row.CreatedAt = now
		row.UpdatedAt = now
		return tx.Create(&row).Error
	})
	if errors.Is(err, ErrDuplicateActiveRequest) || isDuplicateKey(err) {
		return nil, ErrDuplicateActiveRequest
	}
	if err != nil {
		return nil, storeError("enqueue", err)
	}
	return &row, nil
}

func (s *gormQueueStore) ListQueued(ctx context.Context) ([]model.TradeRequest, error) {
	var requests []model.TradeRequest
	err := s.db.WithContext(ctx).
		Where("status = ?", string(model.StatusQueued)).
		Order(queueOrder).
		Find(&requests).Error
	if err != nil {
		return nil, storeError("list queued", err)
	}
	return requests, nil
}

func (s *gormQueueStore) GetActiveRequest(ctx context.Context, requesterID string) (*model.TradeRequest, error) {
	var request model.TradeRequest
	err := s.active(s.db.WithContext(ctx), requesterID).Take(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get active request", err)
	}
	return &request, nil
}

func (s *gormQueueStore) Promote(ctx context.Context, requesterID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockQueue(tx); err != nil {
			return err
		}

		var request model.TradeRequest
		if err := s.active(tx, requesterID).Take(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var minRank int64
		if err := tx.Model(&model.TradeRequest{}).
			Where("status = ?", string(model.StatusQueued)).
			Select("COALESCE(MIN(queue_rank), 0)").
			Row().Scan(&minRank); err != nil {
			return err
		}

		return tx.Model(&model.TradeRequest{}).
			Where("id = ?", request.ID).
			Updates(map[string]any{
				"queue_rank": minRank - 1,
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return storeError("promote", err)
	}
	return nil
}

func (s *gormQueueStore) Remove(ctx context.Context, requesterID string) error {
	res := s.active(s.db.WithContext(ctx), requesterID).
		Updates(map[string]any{
			"status":     string(model.StatusRemoved),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return storeError("remove", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
