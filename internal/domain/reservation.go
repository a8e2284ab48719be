package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationKind distinguishes the short-lived cart hold from the
// longer checkout hold.
type ReservationKind string

const (
	ReservationKindCart     ReservationKind = "cart"
	ReservationKindCheckout ReservationKind = "checkout"
)

// ReservationStatus is the reservation state machine. Active is the
// only non-terminal state.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

var validReservationNext = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationActive: {
		ReservationConfirmed: true,
		ReservationReleased:  true,
		ReservationExpired:   true,
	},
	ReservationConfirmed: {},
	ReservationReleased:  {},
	ReservationExpired:   {},
}

// CanTransitionReservation reports whether a reservation may move from
// one status to another.
func CanTransitionReservation(from, to ReservationStatus) bool {
	return validReservationNext[from][to]
}

// Holder identifies who owns a reservation: an authenticated user or
// an anonymous session key. Exactly one side is used per lookup, but
// both may be present on a request (login mid-session), in which case
// anonymous holds are migrated to the user identity.
type Holder struct {
	UserID     *uuid.UUID
	SessionKey string
}

// Anonymous reports whether the holder has no authenticated identity.
func (h Holder) Anonymous() bool {
	return h.UserID == nil
}

// Reservation is a time-bounded claim on batch quantity. Line item
// prices are locked at creation time and never re-resolved.
type Reservation struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	UserID      *uuid.UUID        `json:"user_id,omitempty" db:"user_id"`
	SessionKey  *string           `json:"session_key,omitempty" db:"session_key"`
	Kind        ReservationKind   `json:"kind" db:"kind"`
	Status      ReservationStatus `json:"status" db:"status"`
	Items       []ReservationItem `json:"items"`
	ExpiresAt   time.Time         `json:"expires_at" db:"expires_at"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ReleasedAt  *time.Time        `json:"released_at,omitempty" db:"released_at"`
	OrderID     *uuid.UUID        `json:"order_id,omitempty" db:"order_id"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// ReservationItem names the batch a held quantity draws from, with the
// unit price and discount locked at reservation time.
type ReservationItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ReservationID   uuid.UUID `json:"reservation_id" db:"reservation_id"`
	ProductID       uuid.UUID `json:"product_id" db:"product_id"`
	BatchID         uuid.UUID `json:"batch_id" db:"batch_id"`
	Quantity        int       `json:"quantity" db:"quantity"`
	UnitPrice       int64     `json:"unit_price" db:"unit_price"`
	DiscountPercent int       `json:"discount_percent" db:"discount_percent"`
}

// Live reports whether the reservation still holds stock at the given
// instant. A reservation whose TTL has lapsed no longer counts against
// availability even before the sweeper marks it expired.
func (r *Reservation) Live(now time.Time) bool {
	return r.Status == ReservationActive && r.ExpiresAt.After(now)
}
