package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freshmart/internal/domain"
	"freshmart/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOrderExpired         = errors.New("order payment deadline has passed")
	ErrOrderNotOwned        = errors.New("order does not belong to this holder")
	ErrReservationNotOwned  = errors.New("reservation does not belong to this holder")
	ErrReservationWrongKind = errors.New("only checkout reservations can become orders")
)

// PaymentSession is what a shopper returning to the payment page sees:
// the order plus how long they still have, or the truth that the
// window has closed.
type PaymentSession struct {
	Order       *domain.Order `json:"order"`
	RemainingMs int64         `json:"remaining_ms"`
	Expired     bool          `json:"expired"`
}

// CheckoutInput carries the customer snapshot captured at checkout.
type CheckoutInput struct {
	ReservationID   uuid.UUID
	CustomerName    string
	CustomerPhone   string
	ShippingAddress string
}

// OrderService owns the order lifecycle and the payment reconciler.
// Every read of a pending order first settles its deadline, so a
// shopper who returns after the window closed is told immediately.
// Payment operations are holder-scoped: knowing an order id is not
// enough to read or move someone else's payment. UpdateStatus is the
// back-office path and is gated by the admin middleware instead.
type OrderService interface {
	Checkout(ctx context.Context, holder domain.Holder, input CheckoutInput) (*domain.Order, error)
	GetPaymentSession(ctx context.Context, holder domain.Holder, orderID uuid.UUID) (*PaymentSession, error)
	ConfirmPayment(ctx context.Context, holder domain.Holder, orderID uuid.UUID, txnID, channel *string) (*domain.Order, error)
	CancelPayment(ctx context.Context, holder domain.Holder, orderID uuid.UUID, reason string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	orders       repository.OrderRepository
	reservations repository.ReservationRepository
	paymentTTL   time.Duration
	shippingFee  int64
	logger       *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orders repository.OrderRepository,
	reservations repository.ReservationRepository,
	paymentTTL time.Duration,
	shippingFee int64,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orders:       orders,
		reservations: reservations,
		paymentTTL:   paymentTTL,
		shippingFee:  shippingFee,
		logger:       logger,
	}
}

// Checkout converts an active checkout reservation into a pending
// order: the ledger is decremented permanently, the reservation is
// confirmed, and the payment clock starts.
func (s *orderService) Checkout(ctx context.Context, holder domain.Holder, input CheckoutInput) (*domain.Order, error) {
	now := time.Now()

	reservation, err := s.reservations.FindByID(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if !holderOwns(holder, reservation) {
		return nil, ErrReservationNotOwned
	}
	if reservation.Kind != domain.ReservationKindCheckout {
		return nil, ErrReservationWrongKind
	}
	if !reservation.Live(now) {
		return nil, repository.ErrInvalidReservationState
	}

	deadline := now.Add(s.paymentTTL)
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          reservation.UserID,
		SessionKey:      reservation.SessionKey,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		ShippingAddress: input.ShippingAddress,
		Status:          domain.OrderPending,
		ShippingFee:     s.shippingFee,
		PaymentDeadline: &deadline,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, item := range reservation.Items {
		order.Subtotal += int64(item.Quantity) * item.UnitPrice
		order.Items = append(order.Items, domain.OrderItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProductID:       item.ProductID,
			BatchID:         item.BatchID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		})
	}
	order.Total = order.Subtotal + order.ShippingFee - order.Discount

	if err := s.orders.CreateFromReservation(ctx, order, reservation.ID, now); err != nil {
		return nil, err
	}

	s.logger.Info("Order created from reservation",
		zap.String("order_id", order.ID.String()),
		zap.String("reservation_id", reservation.ID.String()),
		zap.Int64("total", order.Total),
		zap.Time("payment_deadline", deadline),
	)

	return order, nil
}

// GetPaymentSession settles the deadline and reports the order with
// its remaining payment window.
func (s *orderService) GetPaymentSession(ctx context.Context, holder domain.Holder, orderID uuid.UUID) (*PaymentSession, error) {
	now := time.Now()

	expired, err := s.ensureNotExpired(ctx, orderID, now)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !holderOwnsOrder(holder, order) {
		return nil, ErrOrderNotOwned
	}

	session := &PaymentSession{Order: order, Expired: expired}
	if order.Status == domain.OrderPending && order.PaymentDeadline != nil {
		remaining := order.PaymentDeadline.Sub(now).Milliseconds()
		if remaining > 0 {
			session.RemainingMs = remaining
		}
	}

	return session, nil
}

// ConfirmPayment marks a pending order paid. Already-paid orders
// succeed unchanged so duplicate webhook deliveries are safe; an order
// whose deadline just lapsed fails with ErrOrderExpired after its
// inventory has been restored.
func (s *orderService) ConfirmPayment(ctx context.Context, holder domain.Holder, orderID uuid.UUID, txnID, channel *string) (*domain.Order, error) {
	now := time.Now()

	expired, err := s.ensureNotExpired(ctx, orderID, now)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !holderOwnsOrder(holder, order) {
		return nil, ErrOrderNotOwned
	}
	if expired {
		return nil, ErrOrderExpired
	}

	if err := s.orders.MarkPaid(ctx, orderID, txnID, channel, now); err != nil {
		return nil, err
	}

	order, err = s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order payment confirmed",
		zap.String("order_id", orderID.String()),
		zap.Stringp("txn_id", txnID),
		zap.Stringp("channel", channel),
	)

	return order, nil
}

// CancelPayment cancels a pending order and restores its inventory.
// Idempotent on already cancelled orders.
func (s *orderService) CancelPayment(ctx context.Context, holder domain.Holder, orderID uuid.UUID, reason string) (*domain.Order, error) {
	now := time.Now()

	// Settle the deadline first so a lapsed order is cancelled with
	// reason "timeout" rather than the caller's reason.
	if _, err := s.ensureNotExpired(ctx, orderID, now); err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !holderOwnsOrder(holder, order) {
		return nil, ErrOrderNotOwned
	}

	if reason == "" {
		reason = "cancelled"
	}
	if err := s.orders.Cancel(ctx, orderID, reason, now); err != nil {
		return nil, err
	}

	order, err = s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order payment cancelled",
		zap.String("order_id", orderID.String()),
		zap.String("reason", reason),
	)

	return order, nil
}

// UpdateStatus applies a fulfilment transition (paid -> shipped ->
// completed).
func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if err := s.orders.UpdateStatus(ctx, orderID, to, time.Now()); err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(to)),
	)

	return order, nil
}

// ensureNotExpired is the reconciler's check-then-act step, run inline
// on every pending-order access path rather than only by a background
// job. Returns whether this call (or an earlier one) cancelled the
// order for timeout.
func (s *orderService) ensureNotExpired(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	expired, err := s.orders.ExpireIfDeadlinePassed(ctx, orderID, now)
	if err != nil {
		return false, fmt.Errorf("failed to settle payment deadline: %w", err)
	}
	if expired {
		s.logger.Info("Order expired, inventory restored",
			zap.String("order_id", orderID.String()),
		)
		return true, nil
	}

	// A concurrent caller may have expired it first; report that too.
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	timedOut := order.Status == domain.OrderCancelled &&
		order.CancelReason != nil && *order.CancelReason == domain.CancelReasonTimeout
	return timedOut, nil
}

func holderOwnsOrder(holder domain.Holder, order *domain.Order) bool {
	if holder.UserID != nil && order.UserID != nil && *holder.UserID == *order.UserID {
		return true
	}
	if holder.SessionKey != "" && order.SessionKey != nil && holder.SessionKey == *order.SessionKey {
		return true
	}
	return false
}

func holderOwns(holder domain.Holder, reservation *domain.Reservation) bool {
	if holder.UserID != nil && reservation.UserID != nil && *holder.UserID == *reservation.UserID {
		return true
	}
	if holder.SessionKey != "" && reservation.SessionKey != nil && holder.SessionKey == *reservation.SessionKey {
		return true
	}
	return false
}
