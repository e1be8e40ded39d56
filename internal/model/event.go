package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a change to the queue or the asset registry.
type EventType string

const (
	EventTradeSubmitted     EventType = "trade.submitted"
	EventTradePrioritized   EventType = "trade.prioritized"
	EventTradeRemoved       EventType = "trade.removed"
	EventAssetCreated       EventType = "asset.created"
	EventAssetMetricUpdated EventType = "asset.metric_updated"
)

// QueueEvent is published after a successful mutation. It is the payload of
// the Kafka event topic, the websocket feed and the ClickHouse audit table.
type QueueEvent struct {
	ID          string           `json:"id"`
	Type        EventType        `json:"type"`
	RequesterID string           `json:"requester_id,omitempty"`
	TradeID     string           `json:"trade_id,omitempty"`
	Asset       string           `json:"asset,omitempty"`
	FromAsset   string           `json:"from_asset,omitempty"`
	ToAsset     string           `json:"to_asset,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Quote       *decimal.Decimal `json:"quote,omitempty"`
	Metric      *decimal.Decimal `json:"metric,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}
