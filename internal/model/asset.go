// Package model defines the records owned by the trade queue.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a named tradable unit with a relative exchange weight.
type Asset struct {
	// Name is the lowercased, trimmed identifier. Unique.
	Name string `gorm:"column:name;primaryKey" json:"name"`

	// Metric is the relative exchange weight. Always greater than zero.
	Metric decimal.Decimal `gorm:"column:metric;type:numeric;not null" json:"metric"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Asset) TableName() string {
	return "asset"
}

// NormalizeAssetName returns the canonical form used for lookups and storage.
func NormalizeAssetName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
