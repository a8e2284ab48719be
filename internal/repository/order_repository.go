package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"freshmart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotPending     = errors.New("order is not pending")
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
	ErrInvalidTransition   = errors.New("invalid order status transition")
)

// OrderRepository owns the durable order records and the ledger
// movements tied to them: creating an order permanently decrements the
// originating batches, cancelling or expiring a pending order restores
// them exactly once.
type OrderRepository interface {
	CreateFromReservation(ctx context.Context, order *domain.Order, reservationID uuid.UUID, now time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ExpireIfDeadlinePassed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, txnID, channel *string, now time.Time) error
	Cancel(ctx context.Context, id uuid.UUID, reason string, now time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus, now time.Time) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, session_key, customer_name, customer_phone, shipping_address, status, subtotal, shipping_fee, discount, total, payment_deadline, payment_completed_at, payment_txn_id, payment_channel, cancel_reason, created_at, updated_at`

// CreateFromReservation persists the order, permanently moves the held
// quantities into each batch's sold count, decrements the denormalized
// on-hand counters, and confirms the originating checkout reservation,
// all in one transaction. The conditional sold update double-checks the
// ledger invariant even though the hold should guarantee it.
func (r *orderRepository) CreateFromReservation(ctx context.Context, order *domain.Order, reservationID uuid.UUID, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, session_key, customer_name, customer_phone, shipping_address, status, subtotal, shipping_fee, discount, total, payment_deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		order.ID,
		order.UserID,
		order.SessionKey,
		order.CustomerName,
		order.CustomerPhone,
		order.ShippingAddress,
		order.Status,
		order.Subtotal,
		order.ShippingFee,
		order.Discount,
		order.Total,
		order.PaymentDeadline,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, batch_id, quantity, unit_price, discount_percent)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.BatchID, item.Quantity, item.UnitPrice, item.DiscountPercent)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE batches
			SET sold = sold + $2
			WHERE id = $1 AND received - sold - damaged >= $2
		`, item.BatchID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to decrement batch: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return &LineUnavailableError{ProductID: item.ProductID}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET on_hand = GREATEST(on_hand - $2, 0),
			    in_stock = on_hand - $2 > 0
			WHERE id = $1
		`, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to update product stock: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE reservations
		SET status = $2, confirmed_at = $3, order_id = $4, updated_at = $3
		WHERE id = $1 AND status = $5 AND expires_at > $3
	`, reservationID, domain.ReservationConfirmed, now, order.ID, domain.ReservationActive)
	if err != nil {
		return fmt.Errorf("failed to confirm reservation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInvalidReservationState
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order creation: %w", err)
	}

	return nil
}

// FindByID retrieves an order with its line items.
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order := &domain.Order{}
	err := scanOrder(r.db.QueryRowContext(ctx, query, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	order.Items, err = loadOrderItems(ctx, r.db, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ExpireIfDeadlinePassed cancels a pending order whose payment
// deadline has lapsed and restores the ledger quantities it consumed.
// The conditional update elects exactly one restoring caller: a
// concurrent observer blocks on the row lock, then sees the order
// already cancelled and restores nothing.
func (r *orderRepository) ExpireIfDeadlinePassed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, cancel_reason = $3, payment_deadline = NULL, updated_at = $4
		WHERE id = $1
		  AND status = $5
		  AND payment_deadline IS NOT NULL
		  AND payment_deadline < $4
	`, id, domain.OrderCancelled, domain.CancelReasonTimeout, now, domain.OrderPending)
	if err != nil {
		return false, fmt.Errorf("failed to expire order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := restoreOrderInventory(ctx, tx, id); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit order expiry: %w", err)
	}

	return true, nil
}

// MarkPaid transitions a pending order to paid. Confirming an already
// paid order is a no-op so duplicate webhook deliveries are safe.
func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID, txnID, channel *string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_completed_at = $3, payment_txn_id = $4, payment_channel = $5, updated_at = $3
		WHERE id = $1 AND status = $6
	`, id, domain.OrderPaid, now, txnID, channel, domain.OrderPending)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
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
	if status == domain.OrderPaid {
		// Duplicate confirmation: success.
		return nil
	}
	return ErrOrderNotPending
}

// Cancel cancels a pending order and restores the ledger quantities it
// consumed. Cancelling an already cancelled order is a no-op; orders
// past pending cannot be cancelled here.
func (r *orderRepository) Cancel(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, cancel_reason = $3, payment_deadline = NULL, updated_at = $4
		WHERE id = $1 AND status = $5
	`, id, domain.OrderCancelled, reason, now, domain.OrderPending)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		status, err := r.statusOf(ctx, id)
		if err != nil {
			return err
		}
		if status == domain.OrderCancelled {
			// Idempotent: retries and duplicate deliveries are safe.
			return nil
		}
		return ErrOrderNotCancellable
	}

	if err := restoreOrderInventory(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order cancellation: %w", err)
	}

	return nil
}

// UpdateStatus applies a fulfilment transition (paid -> shipped ->
// completed), rejecting anything the state machine does not allow.
// Cancellation is a ledger movement, not just a status flip, so it
// goes through Cancel and restores the consumed inventory.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus, now time.Time) error {
	if to == domain.OrderCancelled {
		return r.Cancel(ctx, id, domain.CancelReasonStaff, now)
	}

	order, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !domain.CanTransitionOrder(order.Status, to) {
		return ErrInvalidTransition
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4
	`, id, to, now, order.Status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Lost the race to a concurrent transition.
		return ErrInvalidTransition
	}

	return nil
}

func (r *orderRepository) statusOf(ctx context.Context, id uuid.UUID) (domain.OrderStatus, error) {
	var status domain.OrderStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("failed to read order status: %w", err)
	}
	return status, nil
}

// restoreOrderInventory gives each originating batch back the
// quantities the order consumed and bumps the denormalized product
// counters. Runs inside the caller's transaction, after the caller has
// won the conditional cancel, so the restore happens exactly once.
func restoreOrderInventory(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) error {
	items, err := loadOrderItemsTx(ctx, tx, orderID)
	if err != nil {
		return err
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE batches SET sold = sold - $2 WHERE id = $1
		`, item.BatchID, item.Quantity); err != nil {
			return fmt.Errorf("failed to restore batch quantity: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET on_hand = on_hand + $2, in_stock = TRUE
			WHERE id = $1
		`, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("failed to restore product stock: %w", err)
		}
	}

	return nil
}

func loadOrderItems(ctx context.Context, db *sql.DB, orderID uuid.UUID) ([]domain.OrderItem, error) {
	return queryOrderItems(ctx, db, orderID)
}

func loadOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) ([]domain.OrderItem, error) {
	return queryOrderItems(ctx, tx, orderID)
}

func queryOrderItems(ctx context.Context, q queryer, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, batch_id, quantity, unit_price, discount_percent
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		item := domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.BatchID,
			&item.Quantity,
			&item.UnitPrice,
			&item.DiscountPercent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func scanOrder(row rowScanner, order *domain.Order) error {
	return row.Scan(
		&order.ID,
		&order.UserID,
		&order.SessionKey,
		&order.CustomerName,
		&order.CustomerPhone,
		&order.ShippingAddress,
		&order.Status,
		&order.Subtotal,
		&order.ShippingFee,
		&order.Discount,
		&order.Total,
		&order.PaymentDeadline,
		&order.PaymentCompletedAt,
		&order.PaymentTxnID,
		&order.PaymentChannel,
		&order.CancelReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
}
