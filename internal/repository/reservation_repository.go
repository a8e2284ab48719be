package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"freshmart/internal/domain"
	"freshmart/internal/pricing"

	"github.com/google/uuid"
)

var (
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrNoActiveCart            = errors.New("no active cart reservation")
	ErrAlreadyConfirmed        = errors.New("reservation already confirmed")
	ErrInvalidReservationState = errors.New("reservation is not active")
)

// InsufficientStockError reports a FEFO selection shortfall with the
// maximum quantity that could still be satisfied.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// LineUnavailableError reports a checkout re-validation failure naming
// the offending product.
type LineUnavailableError struct {
	ProductID uuid.UUID
}

func (e *LineUnavailableError) Error() string {
	return fmt.Sprintf("line item unavailable for product %s", e.ProductID)
}

// ReservationRepository implements the time-bounded holds on batch
// quantity. Every write that depends on availability runs in a single
// transaction holding FOR UPDATE locks on the batch rows, so the
// available-to-reserve check and the hold write are one atomic step.
type ReservationRepository interface {
	ReserveForCart(ctx context.Context, holder domain.Holder, product *domain.Product, quantity int, ttl time.Duration, now time.Time) (*domain.Reservation, error)
	PromoteToCheckout(ctx context.Context, holder domain.Holder, productIDs []uuid.UUID, ttl time.Duration, now time.Time) (*domain.Reservation, error)
	Confirm(ctx context.Context, id, orderID uuid.UUID, now time.Time) error
	Release(ctx context.Context, id uuid.UUID, now time.Time) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	ListByHolder(ctx context.Context, holder domain.Holder, kind *domain.ReservationKind, now time.Time) ([]*domain.Reservation, error)
	MigrateHolder(ctx context.Context, sessionKey string, userID uuid.UUID, now time.Time) error
}

type reservationRepository struct {
	db *sql.DB
}

// NewReservationRepository creates a new instance of ReservationRepository
func NewReservationRepository(db *sql.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `id, user_id, session_key, kind, status, expires_at, confirmed_at, released_at, order_id, created_at, updated_at`

// holderMatch is the SQL fragment matching a reservation to either
// identity of a holder. Callers pass the user id and session key as
// consecutive nullable parameters.
const holderMatch = `((user_id IS NOT NULL AND user_id = $%d::uuid) OR (session_key IS NOT NULL AND session_key = $%d))`

func holderParams(holder domain.Holder) (userID interface{}, sessionKey interface{}) {
	userID = nil
	if holder.UserID != nil {
		userID = *holder.UserID
	}
	sessionKey = nil
	if holder.SessionKey != "" {
		sessionKey = holder.SessionKey
	}
	return userID, sessionKey
}

// ReserveForCart places a hold on batch quantity for the holder's cart,
// creating the cart reservation if none exists and refreshing its TTL.
//
// Lock order is reservation row first, then batch rows; PromoteToCheckout
// follows the same order to avoid deadlocks.
func (r *reservationRepository) ReserveForCart(ctx context.Context, holder domain.Holder, product *domain.Product, quantity int, ttl time.Duration, now time.Time) (*domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cart, err := lockActiveReservation(ctx, tx, holder, domain.ReservationKindCart, now)
	if err != nil && err != ErrNoActiveCart {
		return nil, err
	}

	batches, reserved, err := lockSellableBatches(ctx, tx, product.ID, now, nil)
	if err != nil {
		return nil, err
	}

	candidates := make([]pricing.Availability, 0, len(batches))
	for _, b := range batches {
		candidates = append(candidates, pricing.Availability{Batch: b, Reserved: reserved[b.ID]})
	}

	draws, available := pricing.SelectBatches(candidates, quantity, now)
	if draws == nil {
		return nil, &InsufficientStockError{ProductID: product.ID, Requested: quantity, Available: available}
	}

	expiresAt := now.Add(ttl)

	if cart == nil {
		cart = &domain.Reservation{
			ID:        uuid.New(),
			UserID:    holder.UserID,
			Kind:      domain.ReservationKindCart,
			Status:    domain.ReservationActive,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if holder.UserID == nil {
			key := holder.SessionKey
			cart.SessionKey = &key
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (id, user_id, session_key, kind, status, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, cart.ID, cart.UserID, cart.SessionKey, cart.Kind, cart.Status, cart.ExpiresAt, cart.CreatedAt, cart.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create cart reservation: %w", err)
		}
	}

	for _, draw := range draws {
		quote := pricing.ResolvePrice(draw.Batch, product, now)

		// Same product+batch line extends in place; its originally
		// locked price is kept.
		result, err := tx.ExecContext(ctx, `
			UPDATE reservation_items
			SET quantity = quantity + $4
			WHERE reservation_id = $1 AND product_id = $2 AND batch_id = $3
		`, cart.ID, product.ID, draw.Batch.ID, draw.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to extend reservation line: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO reservation_items (id, reservation_id, product_id, batch_id, quantity, unit_price, discount_percent)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.New(), cart.ID, product.ID, draw.Batch.ID, draw.Quantity, quote.FinalPrice, quote.DiscountPercent)
			if err != nil {
				return nil, fmt.Errorf("failed to insert reservation line: %w", err)
			}
		}
	}

	// Each add refreshes the cart TTL.
	_, err = tx.ExecContext(ctx, `
		UPDATE reservations SET expires_at = $2, updated_at = $3 WHERE id = $1
	`, cart.ID, expiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh cart TTL: %w", err)
	}
	cart.ExpiresAt = expiresAt

	cart.Items, err = loadReservationItems(ctx, tx, cart.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	return cart, nil
}

// PromoteToCheckout moves selected cart lines into a new checkout-kind
// reservation after re-validating that each line's batch still has
// enough available-to-reserve quantity. The cart's own lines are
// excluded from the reserved sum, since they are the hold being moved.
func (r *reservationRepository) PromoteToCheckout(ctx context.Context, holder domain.Holder, productIDs []uuid.UUID, ttl time.Duration, now time.Time) (*domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cart, err := lockActiveReservation(ctx, tx, holder, domain.ReservationKindCart, now)
	if err != nil {
		return nil, err
	}

	cart.Items, err = loadReservationItems(ctx, tx, cart.ID)
	if err != nil {
		return nil, err
	}

	selected := selectLines(cart.Items, productIDs)
	if len(selected) == 0 {
		return nil, ErrNoActiveCart
	}

	// Re-validate availability per product: time has passed since the
	// cart hold and stock may have moved.
	byProduct := map[uuid.UUID][]domain.ReservationItem{}
	for _, item := range selected {
		byProduct[item.ProductID] = append(byProduct[item.ProductID], item)
	}
	for productID, lines := range byProduct {
		batches, reserved, err := lockSellableBatches(ctx, tx, productID, now, &cart.ID)
		if err != nil {
			return nil, err
		}
		remaining := map[uuid.UUID]int{}
		for _, b := range batches {
			remaining[b.ID] = b.Remaining() - reserved[b.ID]
		}
		for _, line := range lines {
			avail, ok := remaining[line.BatchID]
			if !ok || avail < line.Quantity {
				return nil, &LineUnavailableError{ProductID: productID}
			}
			remaining[line.BatchID] = avail - line.Quantity
		}
	}

	checkout := &domain.Reservation{
		ID:         uuid.New(),
		UserID:     cart.UserID,
		SessionKey: cart.SessionKey,
		Kind:       domain.ReservationKindCheckout,
		Status:     domain.ReservationActive,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, user_id, session_key, kind, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, checkout.ID, checkout.UserID, checkout.SessionKey, checkout.Kind, checkout.Status, checkout.ExpiresAt, checkout.CreatedAt, checkout.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout reservation: %w", err)
	}

	for _, item := range selected {
		newItem := domain.ReservationItem{
			ID:              uuid.New(),
			ReservationID:   checkout.ID,
			ProductID:       item.ProductID,
			BatchID:         item.BatchID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservation_items (id, reservation_id, product_id, batch_id, quantity, unit_price, discount_percent)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, newItem.ID, newItem.ReservationID, newItem.ProductID, newItem.BatchID, newItem.Quantity, newItem.UnitPrice, newItem.DiscountPercent)
		if err != nil {
			return nil, fmt.Errorf("failed to copy reservation line: %w", err)
		}
		checkout.Items = append(checkout.Items, newItem)

		_, err = tx.ExecContext(ctx, `
			DELETE FROM reservation_items WHERE id = $1
		`, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to remove cart line: %w", err)
		}
	}

	if len(selected) == len(cart.Items) {
		// Cart emptied out: release it.
		_, err = tx.ExecContext(ctx, `
			UPDATE reservations SET status = $2, released_at = $3, updated_at = $3 WHERE id = $1
		`, cart.ID, domain.ReservationReleased, now)
		if err != nil {
			return nil, fmt.Errorf("failed to release emptied cart: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout promotion: %w", err)
	}

	return checkout, nil
}

// Confirm transitions an active reservation to confirmed and links the
// order it paid for. The condition on status makes the transition a
// compare-and-swap: a reservation that is no longer active fails.
func (r *reservationRepository) Confirm(ctx context.Context, id, orderID uuid.UUID, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = $2, confirmed_at = $3, order_id = $4, updated_at = $3
		WHERE id = $1 AND status = $5
	`, id, domain.ReservationConfirmed, now, orderID, domain.ReservationActive)
	if err != nil {
		return fmt.Errorf("failed to confirm reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	if _, err := r.statusOf(ctx, id); err != nil {
		return err
	}
	return ErrInvalidReservationState
}

// Release transitions an active reservation to released. Releasing an
// already released or expired reservation is a no-op; a confirmed one
// belongs to its order and cannot be released.
func (r *reservationRepository) Release(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = $2, released_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.ReservationReleased, now, domain.ReservationActive)
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	status, err := r.statusOf(ctx, id)
	if err != nil {
		return err
	}
	if status == domain.ReservationConfirmed {
		return ErrAlreadyConfirmed
	}
	// Already released or expired: idempotent no-op.
	return nil
}

// SweepExpired bulk-transitions every active reservation past its TTL
// to expired. The status condition makes it idempotent and safe to run
// concurrently with itself: a reservation no longer active is skipped.
func (r *reservationRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = $1, released_at = $2, updated_at = $2
		WHERE status = $3 AND expires_at < $2
	`, domain.ReservationExpired, now, domain.ReservationActive)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired reservations: %w", err)
	}

	swept, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return swept, nil
}

// FindByID retrieves a reservation with its line items.
func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	reservation := &domain.Reservation{}
	err := scanReservation(r.db.QueryRowContext(ctx, query, id), reservation)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find reservation by ID: %w", err)
	}

	reservation.Items, err = loadReservationItemsDB(ctx, r.db, reservation.ID)
	if err != nil {
		return nil, err
	}

	return reservation, nil
}

// ListByHolder retrieves the holder's live reservations, optionally
// filtered by kind.
func (r *reservationRepository) ListByHolder(ctx context.Context, holder domain.Holder, kind *domain.ReservationKind, now time.Time) ([]*domain.Reservation, error) {
	userID, sessionKey := holderParams(holder)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE ` + fmt.Sprintf(holderMatch, 1, 2) + `
		  AND status = 'active'
		  AND expires_at > $3
		  AND ($4::text IS NULL OR kind = $4)
		ORDER BY created_at DESC
	`

	var kindParam interface{}
	if kind != nil {
		kindParam = string(*kind)
	}

	rows, err := r.db.QueryContext(ctx, query, userID, sessionKey, now, kindParam)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	reservations := []*domain.Reservation{}
	for rows.Next() {
		reservation := &domain.Reservation{}
		if err := scanReservation(rows, reservation); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}

	for _, reservation := range reservations {
		reservation.Items, err = loadReservationItemsDB(ctx, r.db, reservation.ID)
		if err != nil {
			return nil, err
		}
	}

	return reservations, nil
}

// MigrateHolder transfers an anonymous session's live reservations to
// an authenticated user (the merge-by-holder-transfer policy for login
// mid-session). If the user already has an active cart, the session
// cart's lines are merged into it and the session cart is released.
func (r *reservationRepository) MigrateHolder(ctx context.Context, sessionKey string, userID uuid.UUID, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE session_key = $1 AND status = 'active' AND expires_at > $2
		ORDER BY created_at ASC
		FOR UPDATE
	`, sessionKey, now)
	if err != nil {
		return fmt.Errorf("failed to lock session reservations: %w", err)
	}

	sessionReservations := []*domain.Reservation{}
	for rows.Next() {
		reservation := &domain.Reservation{}
		if err := scanReservation(rows, reservation); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan reservation: %w", err)
		}
		sessionReservations = append(sessionReservations, reservation)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating session reservations: %w", err)
	}
	rows.Close()

	if len(sessionReservations) == 0 {
		return nil
	}

	userHolder := domain.Holder{UserID: &userID}
	userCart, err := lockActiveReservation(ctx, tx, userHolder, domain.ReservationKindCart, now)
	if err != nil && err != ErrNoActiveCart {
		return err
	}

	for _, reservation := range sessionReservations {
		if reservation.Kind == domain.ReservationKindCart && userCart != nil {
			if err := mergeCartLines(ctx, tx, reservation.ID, userCart.ID); err != nil {
				return err
			}

			// Keep the longer of the two TTLs on the surviving cart.
			expiresAt := userCart.ExpiresAt
			if reservation.ExpiresAt.After(expiresAt) {
				expiresAt = reservation.ExpiresAt
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE reservations SET expires_at = $2, updated_at = $3 WHERE id = $1
			`, userCart.ID, expiresAt, now); err != nil {
				return fmt.Errorf("failed to extend merged cart: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				UPDATE reservations SET status = $2, released_at = $3, updated_at = $3 WHERE id = $1
			`, reservation.ID, domain.ReservationReleased, now); err != nil {
				return fmt.Errorf("failed to release merged session cart: %w", err)
			}
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE reservations SET user_id = $2, session_key = NULL, updated_at = $3 WHERE id = $1
		`, reservation.ID, userID, now); err != nil {
			return fmt.Errorf("failed to transfer reservation holder: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit holder migration: %w", err)
	}

	return nil
}

func (r *reservationRepository) statusOf(ctx context.Context, id uuid.UUID) (domain.ReservationStatus, error) {
	var status domain.ReservationStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrReservationNotFound
		}
		return "", fmt.Errorf("failed to read reservation status: %w", err)
	}
	return status, nil
}

// lockActiveReservation finds and row-locks the holder's live
// reservation of the given kind. Returns ErrNoActiveCart when absent.
func lockActiveReservation(ctx context.Context, tx *sql.Tx, holder domain.Holder, kind domain.ReservationKind, now time.Time) (*domain.Reservation, error) {
	userID, sessionKey := holderParams(holder)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE ` + fmt.Sprintf(holderMatch, 1, 2) + `
		  AND kind = $3
		  AND status = 'active'
		  AND expires_at > $4
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`

	reservation := &domain.Reservation{}
	err := scanReservation(tx.QueryRowContext(ctx, query, userID, sessionKey, kind, now), reservation)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoActiveCart
		}
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}

	return reservation, nil
}

// mergeCartLines folds the source cart's lines into the destination
// cart, extending quantity where a line for the same product and batch
// already exists. The destination keeps its originally locked prices.
func mergeCartLines(ctx context.Context, tx *sql.Tx, srcID, dstID uuid.UUID) error {
	items, err := loadReservationItems(ctx, tx, srcID)
	if err != nil {
		return err
	}

	for _, item := range items {
		result, err := tx.ExecContext(ctx, `
			UPDATE reservation_items
			SET quantity = quantity + $3
			WHERE reservation_id = $1 AND product_id = $2 AND batch_id = $4
		`, dstID, item.ProductID, item.Quantity, item.BatchID)
		if err != nil {
			return fmt.Errorf("failed to merge reservation line: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			if _, err := tx.ExecContext(ctx, `
				UPDATE reservation_items SET reservation_id = $2 WHERE id = $1
			`, item.ID, dstID); err != nil {
				return fmt.Errorf("failed to move reservation line: %w", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM reservation_items WHERE id = $1
			`, item.ID); err != nil {
				return fmt.Errorf("failed to drop merged line: %w", err)
			}
		}
	}

	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func loadReservationItems(ctx context.Context, tx *sql.Tx, reservationID uuid.UUID) ([]domain.ReservationItem, error) {
	return queryReservationItems(ctx, tx, reservationID)
}

func loadReservationItemsDB(ctx context.Context, db *sql.DB, reservationID uuid.UUID) ([]domain.ReservationItem, error) {
	return queryReservationItems(ctx, db, reservationID)
}

func queryReservationItems(ctx context.Context, q queryer, reservationID uuid.UUID) ([]domain.ReservationItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, reservation_id, product_id, batch_id, quantity, unit_price, discount_percent
		FROM reservation_items
		WHERE reservation_id = $1
	`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation items: %w", err)
	}
	defer rows.Close()

	items := []domain.ReservationItem{}
	for rows.Next() {
		item := domain.ReservationItem{}
		err := rows.Scan(
			&item.ID,
			&item.ReservationID,
			&item.ProductID,
			&item.BatchID,
			&item.Quantity,
			&item.UnitPrice,
			&item.DiscountPercent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation item: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation items: %w", err)
	}

	return items, nil
}

func scanReservation(row rowScanner, reservation *domain.Reservation) error {
	return row.Scan(
		&reservation.ID,
		&reservation.UserID,
		&reservation.SessionKey,
		&reservation.Kind,
		&reservation.Status,
		&reservation.ExpiresAt,
		&reservation.ConfirmedAt,
		&reservation.ReleasedAt,
		&reservation.OrderID,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
}

// selectLines filters cart items down to the requested products; an
// empty filter selects everything.
func selectLines(items []domain.ReservationItem, productIDs []uuid.UUID) []domain.ReservationItem {
	if len(productIDs) == 0 {
		return items
	}
	wanted := map[uuid.UUID]bool{}
	for _, id := range productIDs {
		wanted[id] = true
	}
	selected := []domain.ReservationItem{}
	for _, item := range items {
		if wanted[item.ProductID] {
			selected = append(selected, item)
		}
	}
	return selected
}
