package pricing

import (
	"testing"
	"time"

	"freshmart/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func availability(remaining, reserved int, expiry *time.Time, importedAt time.Time) Availability {
	return Availability{
		Batch: &domain.Batch{
			ID:         uuid.New(),
			Received:   remaining,
			IsActive:   true,
			ExpiryDate: expiry,
			ImportedAt: importedAt,
		},
		Reserved: reserved,
	}
}

func TestSelectBatches_DrawsEarliestExpiryFirst(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	soon := availability(5, 0, timePtr(now.Add(24*time.Hour)), now.Add(-48*time.Hour))
	later := availability(5, 0, timePtr(now.Add(72*time.Hour)), now.Add(-24*time.Hour))
	never := availability(5, 0, nil, now.Add(-72*time.Hour))

	draws, available := SelectBatches([]Availability{never, later, soon}, 12, now)
	if available != 15 {
		t.Fatalf("available = %d, want 15", available)
	}
	if len(draws) != 3 {
		t.Fatalf("len(draws) = %d, want 3", len(draws))
	}

	if draws[0].Batch.ID != soon.Batch.ID || draws[0].Quantity != 5 {
		t.Errorf("first draw should exhaust the soonest-expiring batch")
	}
	if draws[1].Batch.ID != later.Batch.ID || draws[1].Quantity != 5 {
		t.Errorf("second draw should take the later-expiring batch")
	}
	if draws[2].Batch.ID != never.Batch.ID || draws[2].Quantity != 2 {
		t.Errorf("no-expiry batch should be drawn last, got qty %d", draws[2].Quantity)
	}
}

func TestSelectBatches_TiesBreakOnImportTime(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	expiry := timePtr(now.Add(48 * time.Hour))
	older := availability(3, 0, expiry, now.Add(-96*time.Hour))
	newer := availability(3, 0, expiry, now.Add(-12*time.Hour))

	draws, _ := SelectBatches([]Availability{newer, older}, 4, now)
	if len(draws) != 2 {
		t.Fatalf("len(draws) = %d, want 2", len(draws))
	}
	if draws[0].Batch.ID != older.Batch.ID {
		t.Errorf("earlier import should be drawn first on equal expiry")
	}
}

func TestSelectBatches_SkipsExpiredAndInactive(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	expired := availability(10, 0, timePtr(now.Add(-time.Hour)), now.Add(-48*time.Hour))
	inactive := availability(10, 0, timePtr(now.Add(48*time.Hour)), now.Add(-48*time.Hour))
	inactive.Batch.IsActive = false
	live := availability(4, 0, timePtr(now.Add(24*time.Hour)), now.Add(-24*time.Hour))

	draws, available := SelectBatches([]Availability{expired, inactive, live}, 4, now)
	if len(draws) != 1 || draws[0].Batch.ID != live.Batch.ID {
		t.Fatalf("expired batch must never be drawn from")
	}
	// The inactive batch still counts toward availability but sorts last.
	if available != 14 {
		t.Errorf("available = %d, want 14", available)
	}
}

func TestSelectBatches_ReservedQuantityReducesAvailability(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// received=10 with 6 already held: a request for 5 must fail with
	// available 4, and a request for 4 must succeed.
	batch := availability(10, 6, nil, now.Add(-24*time.Hour))

	draws, available := SelectBatches([]Availability{batch}, 5, now)
	if draws != nil {
		t.Fatalf("expected shortfall, got %d draws", len(draws))
	}
	if available != 4 {
		t.Errorf("available = %d, want 4", available)
	}

	draws, _ = SelectBatches([]Availability{batch}, 4, now)
	if len(draws) != 1 || draws[0].Quantity != 4 {
		t.Errorf("a request matching availability must succeed")
	}
}

func TestProperty_SelectBatchesNeverOversells(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genBatches := gen.SliceOfN(5, gen.IntRange(0, 20))

	properties.Property("drawn total equals request and never exceeds any batch's availability", prop.ForAll(
		func(remainings []int, reserved []int, request int) bool {
			now := time.Now()
			candidates := make([]Availability, 0, len(remainings))
			for i, r := range remainings {
				held := 0
				if i < len(reserved) {
					held = reserved[i]
				}
				candidates = append(candidates, availability(r, held, timePtr(now.Add(time.Duration(i+1)*time.Hour)), now))
			}

			draws, available := SelectBatches(candidates, request, now)
			if draws == nil {
				// Shortfall must be honest: the request truly exceeded supply.
				return request > available
			}

			total := 0
			byID := make(map[uuid.UUID]Availability)
			for _, c := range candidates {
				byID[c.Batch.ID] = c
			}
			for _, d := range draws {
				total += d.Quantity
				if d.Quantity <= 0 || d.Quantity > byID[d.Batch.ID].AvailableToReserve() {
					return false
				}
			}
			return total == request
		},
		genBatches,
		gen.SliceOfN(5, gen.IntRange(0, 10)),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
