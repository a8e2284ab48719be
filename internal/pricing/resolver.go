package pricing

import (
	"time"

	"freshmart/internal/domain"
)

// DiscountSource names where the applied discount came from.
type DiscountSource string

const (
	DiscountSourceBatch   DiscountSource = "batch"
	DiscountSourceProduct DiscountSource = "product"
	DiscountSourceNone    DiscountSource = "none"
)

// Quote is the effective price of one unit drawn from a batch at a
// point in time. It is computed once when a reservation is created and
// stored; later catalog or discount edits never change a stored quote.
type Quote struct {
	BasePrice       int64          `json:"base_price"`
	FinalPrice      int64          `json:"final_price"`
	DiscountPercent int            `json:"discount_percent"`
	DiscountSource  DiscountSource `json:"discount_source"`
	Active          bool           `json:"active"`
}

// ResolvePrice computes the effective unit price for a batch of a
// product at the given instant.
//
// Base price precedence: batch sale price, then batch unit cost, then
// product base price; the first non-zero wins. Discount precedence: a
// batch-level discount applies only if its percent is positive and now
// falls inside its window; otherwise the product-level discount under
// the same rule; otherwise none. Unset window bounds are unbounded.
//
// The function is pure: same inputs, same quote.
func ResolvePrice(batch *domain.Batch, product *domain.Product, now time.Time) Quote {
	q := Quote{DiscountSource: DiscountSourceNone}

	switch {
	case batch != nil && batch.SalePrice > 0:
		q.BasePrice = batch.SalePrice
	case batch != nil && batch.UnitCost > 0:
		q.BasePrice = batch.UnitCost
	case product != nil && product.BasePrice > 0:
		q.BasePrice = product.BasePrice
	}

	if batch != nil && discountActive(batch.DiscountPercent, batch.DiscountStart, batch.DiscountEnd, now) {
		q.DiscountPercent = clampPercent(batch.DiscountPercent)
		q.DiscountSource = DiscountSourceBatch
	} else if product != nil && discountActive(product.DiscountPercent, product.DiscountStart, product.DiscountEnd, now) {
		q.DiscountPercent = clampPercent(product.DiscountPercent)
		q.DiscountSource = DiscountSourceProduct
	}

	q.FinalPrice = applyDiscount(q.BasePrice, q.DiscountPercent)
	q.Active = q.DiscountPercent > 0
	return q
}

// discountActive reports whether a discount percent applies at the
// given instant. A nil bound is unbounded on that side.
func discountActive(percent int, start, end *time.Time, now time.Time) bool {
	if percent <= 0 {
		return false
	}
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// applyDiscount computes round(base * (100 - percent) / 100) in minor
// units, never below zero.
func applyDiscount(base int64, percent int) int64 {
	p := int64(clampPercent(percent))
	if base <= 0 {
		return 0
	}
	// Integer round-half-up of base*(100-p)/100.
	final := (base*(100-p) + 50) / 100
	if final < 0 {
		return 0
	}
	return final
}
