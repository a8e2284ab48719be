package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a catalog entry. Prices are stored in minor
// currency units (cents). OnHand is a denormalized counter kept in
// lockstep with batch-level quantity changes so display paths that do
// not join batches still read a consistent number.
type Product struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Description     string     `json:"description" db:"description"`
	BasePrice       int64      `json:"base_price" db:"base_price"`
	DiscountPercent int        `json:"discount_percent" db:"discount_percent"`
	DiscountStart   *time.Time `json:"discount_start,omitempty" db:"discount_start"`
	DiscountEnd     *time.Time `json:"discount_end,omitempty" db:"discount_end"`
	InStock         bool       `json:"in_stock" db:"in_stock"`
	OnHand          int        `json:"on_hand" db:"on_hand"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}
