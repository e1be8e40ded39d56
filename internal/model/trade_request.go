package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a TradeRequest.
// A request only ever leaves StatusQueued; it never returns to it.
type TradeStatus string

const (
	StatusQueued    TradeStatus = "queued"
	StatusFulfilled TradeStatus = "fulfilled"
	StatusRemoved   TradeStatus = "removed"
)

// TradeRequest is a single requester's request to convert FromAsset into ToAsset.
type TradeRequest struct {
	// ID is a uuid assigned on submission. Never reused.
	ID string `gorm:"column:id;primaryKey" json:"id"`

	// RequesterID identifies the submitting user.
	RequesterID string `gorm:"column:requester_id;not null" json:"requester_id"`

	FromAsset string `gorm:"column:from_asset;not null" json:"from_asset"`
	ToAsset   string `gorm:"column:to_asset;not null" json:"to_asset"`

	// Amount is the quantity of FromAsset offered.
	Amount decimal.Decimal `gorm:"column:amount;type:numeric;not null" json:"amount"`

	// FromMetric and ToMetric are the asset metrics locked in at submission.
	// Later metric updates do not touch them.
	FromMetric decimal.Decimal `gorm:"column:from_metric;type:numeric;not null" json:"from_metric"`
	ToMetric   decimal.Decimal `gorm:"column:to_metric;type:numeric;not null" json:"to_metric"`

	Status TradeStatus `gorm:"column:status;not null" json:"status"`

	// Rank is 0 until the request is promoted. Promotion assigns a rank lower
	// than every other queued request, so lower ranks sit closer to the front.
	Rank int64 `gorm:"column:queue_rank;not null;default:0" json:"rank"`

	// Seq is the submission sequence used to keep unpromoted requests oldest-first.
	Seq int64 `gorm:"column:seq;not null" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (TradeRequest) TableName() string {
	return "trade_request"
}

// Quote returns the amount of ToAsset implied by the locked-in metrics:
// Amount * FromMetric / ToMetric. Metrics are always positive; a zero
// ToMetric means a corrupt row and panics.
func (t *TradeRequest) Quote() decimal.Decimal {
	return t.Amount.Mul(t.FromMetric).Div(t.ToMetric)
}

// QueueOrderLess reports whether a sits ahead of b in the active queue.
func QueueOrderLess(a, b *TradeRequest) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
