package domain

import (
	"time"

	"github.com/google/uuid"
)

// Batch is one supplier delivery of a product. Quantity bookkeeping:
// remaining = received - sold - damaged, and remaining >= 0 always.
// Batches are never deleted; expired ones remain for audit.
type Batch struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ProductID       uuid.UUID  `json:"product_id" db:"product_id"`
	SupplierID      uuid.UUID  `json:"supplier_id" db:"supplier_id"`
	Received        int        `json:"received" db:"received"`
	Sold            int        `json:"sold" db:"sold"`
	Damaged         int        `json:"damaged" db:"damaged"`
	UnitCost        int64      `json:"unit_cost" db:"unit_cost"`
	SalePrice       int64      `json:"sale_price" db:"sale_price"`
	DiscountPercent int        `json:"discount_percent" db:"discount_percent"`
	DiscountStart   *time.Time `json:"discount_start,omitempty" db:"discount_start"`
	DiscountEnd     *time.Time `json:"discount_end,omitempty" db:"discount_end"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	ImportedAt      time.Time  `json:"imported_at" db:"imported_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Remaining returns the quantity physically left in the batch.
func (b *Batch) Remaining() int {
	return b.Received - b.Sold - b.Damaged
}

// Sellable reports whether the batch can still be drawn from at the
// given instant: some quantity remains and the batch has not expired.
func (b *Batch) Sellable(now time.Time) bool {
	if b.Remaining() <= 0 {
		return false
	}
	return b.ExpiryDate == nil || b.ExpiryDate.After(now)
}
