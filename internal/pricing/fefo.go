package pricing

import (
	"sort"
	"time"

	"freshmart/internal/domain"
)

// Availability pairs a batch with the quantity currently held against
// it by live reservations. AvailableToReserve is what a new hold may
// draw: remaining minus already-reserved.
type Availability struct {
	Batch    *domain.Batch
	Reserved int
}

// AvailableToReserve returns the quantity a new reservation may claim
// from this batch.
func (a Availability) AvailableToReserve() int {
	n := a.Batch.Remaining() - a.Reserved
	if n < 0 {
		return 0
	}
	return n
}

// Draw is one slice of a FEFO selection: take Quantity units from
// Batch.
type Draw struct {
	Batch    *domain.Batch
	Quantity int
}

// SelectBatches picks the batches a requested quantity is drawn from
// under First-Expired-First-Out. Candidates must already be sellable;
// they are ordered active-first, then ascending expiry (nil expiry
// last), then ascending import time, and drawn greedily.
//
// When the request cannot be satisfied the draws are nil and the
// second return value reports the maximum satisfiable quantity.
func SelectBatches(candidates []Availability, quantity int, now time.Time) ([]Draw, int) {
	ordered := make([]Availability, 0, len(candidates))
	for _, c := range candidates {
		if c.Batch.Sellable(now) && c.AvailableToReserve() > 0 {
			ordered = append(ordered, c)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		bi, bj := ordered[i].Batch, ordered[j].Batch
		if bi.IsActive != bj.IsActive {
			return bi.IsActive
		}
		switch {
		case bi.ExpiryDate == nil && bj.ExpiryDate == nil:
			// fall through to import time
		case bi.ExpiryDate == nil:
			return false
		case bj.ExpiryDate == nil:
			return true
		case !bi.ExpiryDate.Equal(*bj.ExpiryDate):
			return bi.ExpiryDate.Before(*bj.ExpiryDate)
		}
		return bi.ImportedAt.Before(bj.ImportedAt)
	})

	available := 0
	for _, c := range ordered {
		available += c.AvailableToReserve()
	}
	if available < quantity {
		return nil, available
	}

	draws := make([]Draw, 0, len(ordered))
	left := quantity
	for _, c := range ordered {
		if left == 0 {
			break
		}
		take := c.AvailableToReserve()
		if take > left {
			take = left
		}
		draws = append(draws, Draw{Batch: c.Batch, Quantity: take})
		left -= take
	}
	return draws, available
}
