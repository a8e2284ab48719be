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
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ReservationService defines the reservation manager: time-bounded
// holds on batch quantity tracked per shopper.
type ReservationService interface {
	ReserveForCart(ctx context.Context, holder domain.Holder, productID uuid.UUID, quantity int) (*domain.Reservation, error)
	ConfirmForCheckout(ctx context.Context, holder domain.Holder, productIDs []uuid.UUID) (*domain.Reservation, error)
	ConfirmPayment(ctx context.Context, reservationID, orderID uuid.UUID) error
	Release(ctx context.Context, reservationID uuid.UUID) error
	MyReservations(ctx context.Context, holder domain.Holder, kind *domain.ReservationKind) ([]*domain.Reservation, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type reservationService struct {
	reservations repository.ReservationRepository
	products     repository.ProductRepository
	cartTTL      time.Duration
	checkoutTTL  time.Duration
	logger       *zap.Logger
}

// NewReservationService creates a new instance of ReservationService
func NewReservationService(
	reservations repository.ReservationRepository,
	products repository.ProductRepository,
	cartTTL, checkoutTTL time.Duration,
	logger *zap.Logger,
) ReservationService {
	return &reservationService{
		reservations: reservations,
		products:     products,
		cartTTL:      cartTTL,
		checkoutTTL:  checkoutTTL,
		logger:       logger,
	}
}

// ReserveForCart places a hold on stock for the holder's cart. The
// price is locked at this moment; later catalog edits do not change it.
func (s *reservationService) ReserveForCart(ctx context.Context, holder domain.Holder, productID uuid.UUID, quantity int) (*domain.Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now()
	if err := s.mergeAnonymousHolds(ctx, holder, now); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	reservation, err := s.reservations.ReserveForCart(ctx, holder, product, quantity, s.cartTTL, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reserved stock for cart",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
		zap.Time("expires_at", reservation.ExpiresAt),
	)

	return reservation, nil
}

// ConfirmForCheckout promotes selected cart lines into a checkout-kind
// reservation with the longer TTL, re-validating availability since
// stock may have moved while the cart sat idle.
func (s *reservationService) ConfirmForCheckout(ctx context.Context, holder domain.Holder, productIDs []uuid.UUID) (*domain.Reservation, error) {
	now := time.Now()
	if err := s.mergeAnonymousHolds(ctx, holder, now); err != nil {
		return nil, err
	}

	reservation, err := s.reservations.PromoteToCheckout(ctx, holder, productIDs, s.checkoutTTL, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Promoted cart to checkout",
		zap.String("reservation_id", reservation.ID.String()),
		zap.Int("line_items", len(reservation.Items)),
		zap.Time("expires_at", reservation.ExpiresAt),
	)

	return reservation, nil
}

// ConfirmPayment transitions an active reservation to confirmed,
// linking the order that paid for it.
func (s *reservationService) ConfirmPayment(ctx context.Context, reservationID, orderID uuid.UUID) error {
	if err := s.reservations.Confirm(ctx, reservationID, orderID, time.Now()); err != nil {
		return err
	}

	s.logger.Info("Reservation confirmed",
		zap.String("reservation_id", reservationID.String()),
		zap.String("order_id", orderID.String()),
	)
	return nil
}

// Release releases an active reservation. Confirmed reservations belong
// to their order and cannot be released here.
func (s *reservationService) Release(ctx context.Context, reservationID uuid.UUID) error {
	if err := s.reservations.Release(ctx, reservationID, time.Now()); err != nil {
		return err
	}

	s.logger.Info("Reservation released", zap.String("reservation_id", reservationID.String()))
	return nil
}

// MyReservations lists the holder's live reservations.
func (s *reservationService) MyReservations(ctx context.Context, holder domain.Holder, kind *domain.ReservationKind) ([]*domain.Reservation, error) {
	now := time.Now()
	if err := s.mergeAnonymousHolds(ctx, holder, now); err != nil {
		return nil, err
	}
	return s.reservations.ListByHolder(ctx, holder, kind, now)
}

// SweepExpired bulk-expires reservations past their TTL. Called by the
// background sweeper; idempotent and safe to run concurrently.
func (s *reservationService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	swept, err := s.reservations.SweepExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.logger.Info("Swept expired reservations", zap.Int64("count", swept))
	}
	return swept, nil
}

// mergeAnonymousHolds migrates a session's holds to the user identity
// when a request carries both: a shopper who logged in mid-session
// keeps their cart.
func (s *reservationService) mergeAnonymousHolds(ctx context.Context, holder domain.Holder, now time.Time) error {
	if holder.UserID == nil || holder.SessionKey == "" {
		return nil
	}
	if err := s.reservations.MigrateHolder(ctx, holder.SessionKey, *holder.UserID, now); err != nil {
		return fmt.Errorf("failed to migrate anonymous holds: %w", err)
	}
	return nil
}
