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
	ErrBatchNotFound = errors.New("batch not found")
)

// BatchRepository owns the supplier batch ledger. Recording a receipt
// bumps the product's denormalized on-hand counter in the same
// transaction so the two never drift.
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Batch, error)
}

type batchRepository struct {
	db *sql.DB
}

// NewBatchRepository creates a new instance of BatchRepository
func NewBatchRepository(db *sql.DB) BatchRepository {
	return &batchRepository{db: db}
}

const batchColumns = `id, product_id, supplier_id, received, sold, damaged, unit_cost, sale_price, discount_percent, discount_start, discount_end, expiry_date, is_active, imported_at, created_at, updated_at`

// Create records a supplier receipt and increments the product's
// on-hand counter atomically.
func (r *batchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO batches (id, product_id, supplier_id, received, sold, damaged, unit_cost, sale_price, discount_percent, discount_start, discount_end, expiry_date, is_active, imported_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		batch.ID,
		batch.ProductID,
		batch.SupplierID,
		batch.Received,
		batch.Sold,
		batch.Damaged,
		batch.UnitCost,
		batch.SalePrice,
		batch.DiscountPercent,
		batch.DiscountStart,
		batch.DiscountEnd,
		batch.ExpiryDate,
		batch.IsActive,
		batch.ImportedAt,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET on_hand = on_hand + $2, in_stock = TRUE
		WHERE id = $1
	`, batch.ProductID, batch.Received)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch creation: %w", err)
	}

	return nil
}

// FindByID retrieves a batch by ID
func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`

	batch := &domain.Batch{}
	err := scanBatch(r.db.QueryRowContext(ctx, query, id), batch)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to find batch by ID: %w", err)
	}

	return batch, nil
}

// ListByProduct retrieves all batches of a product in FEFO order.
func (r *batchRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE product_id = $1
		ORDER BY is_active DESC, expiry_date ASC NULLS LAST, imported_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := []*domain.Batch{}
	for rows.Next() {
		batch := &domain.Batch{}
		if err := scanBatch(rows, batch); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return batches, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row rowScanner, batch *domain.Batch) error {
	return row.Scan(
		&batch.ID,
		&batch.ProductID,
		&batch.SupplierID,
		&batch.Received,
		&batch.Sold,
		&batch.Damaged,
		&batch.UnitCost,
		&batch.SalePrice,
		&batch.DiscountPercent,
		&batch.DiscountStart,
		&batch.DiscountEnd,
		&batch.ExpiryDate,
		&batch.IsActive,
		&batch.ImportedAt,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
}

// lockSellableBatches takes FOR UPDATE row locks on every sellable
// batch of a product and returns them in FEFO order together with the
// quantity currently held by live reservations. Callers must run this
// inside the transaction that writes the hold: the lock makes the
// availability check and the reservation write one atomic step.
func lockSellableBatches(ctx context.Context, tx *sql.Tx, productID uuid.UUID, now time.Time, excludeReservation *uuid.UUID) ([]*domain.Batch, map[uuid.UUID]int, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE product_id = $1
		  AND received - sold - damaged > 0
		  AND (expiry_date IS NULL OR expiry_date > $2)
		ORDER BY is_active DESC, expiry_date ASC NULLS LAST, imported_at ASC
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, productID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock batches: %w", err)
	}
	defer rows.Close()

	batches := []*domain.Batch{}
	ids := []string{}
	for rows.Next() {
		batch := &domain.Batch{}
		if err := scanBatch(rows, batch); err != nil {
			return nil, nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
		ids = append(ids, batch.ID.String())
	}
	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating batches: %w", err)
	}

	reserved, err := reservedQuantities(ctx, tx, ids, now, excludeReservation)
	if err != nil {
		return nil, nil, err
	}

	return batches, reserved, nil
}

// reservedQuantities sums live reservation quantities per batch.
// Reservations past their TTL are excluded even before the sweeper
// marks them expired. excludeReservation lets the checkout promotion
// ignore the cart's own lines when re-validating availability.
func reservedQuantities(ctx context.Context, tx *sql.Tx, batchIDs []string, now time.Time, excludeReservation *uuid.UUID) (map[uuid.UUID]int, error) {
	reserved := map[uuid.UUID]int{}
	if len(batchIDs) == 0 {
		return reserved, nil
	}

	query := `
		SELECT ri.batch_id, COALESCE(SUM(ri.quantity), 0)
		FROM reservation_items ri
		JOIN reservations r ON r.id = ri.reservation_id
		WHERE ri.batch_id = ANY($1::uuid[])
		  AND r.status = 'active'
		  AND r.expires_at > $2
		  AND ($3::uuid IS NULL OR r.id <> $3::uuid)
		GROUP BY ri.batch_id
	`

	rows, err := tx.QueryContext(ctx, query, batchIDs, now, excludeReservation)
	if err != nil {
		return nil, fmt.Errorf("failed to sum reserved quantities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var batchID uuid.UUID
		var qty int
		if err := rows.Scan(&batchID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan reserved quantity: %w", err)
		}
		reserved[batchID] = qty
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reserved quantities: %w", err)
	}

	return reserved, nil
}
