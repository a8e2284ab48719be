package service

import (
	"context"
	"errors"
	"time"

	"freshmart/internal/domain"
	"freshmart/internal/pricing"
	"freshmart/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidReceived = errors.New("received quantity must be positive")
)

// PricedProduct is a catalog read with the currently effective price
// attached. The quote is display-only; reservations lock their own.
type PricedProduct struct {
	Product *domain.Product `json:"product"`
	Quote   pricing.Quote   `json:"quote"`
}

// CatalogService covers the catalog and receiving surface: products,
// supplier batch receipts, and priced reads.
type CatalogService interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	CreateBatch(ctx context.Context, batch *domain.Batch) error
	GetProduct(ctx context.Context, id uuid.UUID) (*PricedProduct, error)
	ListProducts(ctx context.Context, page, pageSize int) ([]*PricedProduct, int, error)
}

type catalogService struct {
	products repository.ProductRepository
	batches  repository.BatchRepository
	logger   *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	batches repository.BatchRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		products: products,
		batches:  batches,
		logger:   logger,
	}
}

// CreateProduct registers a catalog entry.
func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	if product.BasePrice < 0 {
		return ErrInvalidPrice
	}

	now := time.Now()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Create(ctx, product); err != nil {
		return err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
	)
	return nil
}

// CreateBatch records a supplier receipt into the ledger.
func (s *catalogService) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	if batch.Received <= 0 {
		return ErrInvalidReceived
	}
	if batch.UnitCost < 0 || batch.SalePrice < 0 {
		return ErrInvalidPrice
	}

	if _, err := s.products.FindByID(ctx, batch.ProductID); err != nil {
		return err
	}

	now := time.Now()
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.ImportedAt.IsZero() {
		batch.ImportedAt = now
	}
	batch.Sold = 0
	batch.Damaged = 0
	batch.CreatedAt = now
	batch.UpdatedAt = now

	if err := s.batches.Create(ctx, batch); err != nil {
		return err
	}

	s.logger.Info("Supplier batch received",
		zap.String("batch_id", batch.ID.String()),
		zap.String("product_id", batch.ProductID.String()),
		zap.Int("received", batch.Received),
	)
	return nil
}

// GetProduct returns a product with its currently effective price,
// resolved against the batch the product is being drawn from.
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*PricedProduct, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.priceProduct(ctx, product), nil
}

// ListProducts returns a page of products with effective prices.
func (s *catalogService) ListProducts(ctx context.Context, page, pageSize int) ([]*PricedProduct, int, error) {
	products, total, err := s.products.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	priced := make([]*PricedProduct, 0, len(products))
	for _, product := range products {
		priced = append(priced, s.priceProduct(ctx, product))
	}
	return priced, total, nil
}

// priceProduct resolves a display quote from the first sellable batch
// in FEFO order. Missing batch data degrades to the product's own
// price with no discount; display pricing is enrichment, not a
// correctness gate, so failures are logged rather than returned.
func (s *catalogService) priceProduct(ctx context.Context, product *domain.Product) *PricedProduct {
	now := time.Now()

	batches, err := s.batches.ListByProduct(ctx, product.ID)
	if err != nil {
		s.logger.Warn("Failed to load batches for pricing, using product price",
			zap.String("product_id", product.ID.String()),
			zap.Error(err),
		)
		return &PricedProduct{Product: product, Quote: pricing.ResolvePrice(nil, product, now)}
	}

	var current *domain.Batch
	for _, batch := range batches {
		if batch.Sellable(now) {
			current = batch
			break
		}
	}

	return &PricedProduct{Product: product, Quote: pricing.ResolvePrice(current, product, now)}
}
