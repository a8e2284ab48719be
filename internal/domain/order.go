package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the order state machine: pending -> paid -> shipped
// -> completed, or pending -> cancelled.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Cancel reasons recorded by the system itself rather than supplied by
// the caller: the payment reconciler stamps timeout, the back-office
// status endpoint stamps staff.
const (
	CancelReasonTimeout = "timeout"
	CancelReasonStaff   = "cancelled by staff"
)

var validOrderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderPaid: true, OrderCancelled: true},
	OrderPaid:      {OrderShipped: true},
	OrderShipped:   {OrderCompleted: true},
	OrderCompleted: {},
	OrderCancelled: {},
}

// CanTransitionOrder reports whether an order may move from one status
// to another.
func CanTransitionOrder(from, to OrderStatus) bool {
	return validOrderNext[from][to]
}

// Order is the durable record of a completed checkout. Item prices are
// a snapshot locked at reservation time, not live catalog references.
type Order struct {
	ID                 uuid.UUID   `json:"id" db:"id"`
	UserID             *uuid.UUID  `json:"user_id,omitempty" db:"user_id"`
	SessionKey         *string     `json:"session_key,omitempty" db:"session_key"`
	CustomerName       string      `json:"customer_name" db:"customer_name"`
	CustomerPhone      string      `json:"customer_phone" db:"customer_phone"`
	ShippingAddress    string      `json:"shipping_address" db:"shipping_address"`
	Status             OrderStatus `json:"status" db:"status"`
	Subtotal           int64       `json:"subtotal" db:"subtotal"`
	ShippingFee        int64       `json:"shipping_fee" db:"shipping_fee"`
	Discount           int64       `json:"discount" db:"discount"`
	Total              int64       `json:"total" db:"total"`
	PaymentDeadline    *time.Time  `json:"payment_deadline,omitempty" db:"payment_deadline"`
	PaymentCompletedAt *time.Time  `json:"payment_completed_at,omitempty" db:"payment_completed_at"`
	PaymentTxnID       *string     `json:"payment_txn_id,omitempty" db:"payment_txn_id"`
	PaymentChannel     *string     `json:"payment_channel,omitempty" db:"payment_channel"`
	CancelReason       *string     `json:"cancel_reason,omitempty" db:"cancel_reason"`
	Items              []OrderItem `json:"items"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderItem records the batch each sold quantity was drawn from so a
// cancelled or expired order restores exactly the batches it consumed.
type OrderItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	OrderID         uuid.UUID `json:"order_id" db:"order_id"`
	ProductID       uuid.UUID `json:"product_id" db:"product_id"`
	BatchID         uuid.UUID `json:"batch_id" db:"batch_id"`
	Quantity        int       `json:"quantity" db:"quantity"`
	UnitPrice       int64     `json:"unit_price" db:"unit_price"`
	DiscountPercent int       `json:"discount_percent" db:"discount_percent"`
}

// PaymentExpired reports whether a pending order's payment deadline
// has lapsed. Such an order must be treated as cancelled on next
// observation and its held inventory returned exactly once.
func (o *Order) PaymentExpired(now time.Time) bool {
	return o.Status == OrderPending && o.PaymentDeadline != nil && o.PaymentDeadline.Before(now)
}
