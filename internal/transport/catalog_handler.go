package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"freshmart/internal/domain"
	"freshmart/internal/middleware"
	"freshmart/internal/repository"
	"freshmart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProductRequest represents the admin product payload. Prices
// are minor currency units.
type CreateProductRequest struct {
	Name            string     `json:"name" validate:"required,min=1,max=255"`
	Description     string     `json:"description" validate:"max=1000"`
	BasePrice       int64      `json:"base_price" validate:"required,gte=0"`
	DiscountPercent int        `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountStart   *time.Time `json:"discount_start"`
	DiscountEnd     *time.Time `json:"discount_end"`
}

// CreateBatchRequest represents a supplier delivery receipt
type CreateBatchRequest struct {
	ProductID       string     `json:"product_id" validate:"required,uuid4"`
	SupplierID      string     `json:"supplier_id" validate:"required,uuid4"`
	Received        int        `json:"received" validate:"required,gt=0"`
	UnitCost        int64      `json:"unit_cost" validate:"gte=0"`
	SalePrice       int64      `json:"sale_price" validate:"gte=0"`
	DiscountPercent int        `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountStart   *time.Time `json:"discount_start"`
	DiscountEnd     *time.Time `json:"discount_end"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	IsActive        *bool      `json:"is_active"`
	ImportedAt      *time.Time `json:"imported_at"`
}

// ProductListResponse wraps a paginated catalog read
type ProductListResponse struct {
	Products []*service.PricedProduct `json:"products"`
	Total    int                      `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
}

// CatalogHandler handles HTTP requests for the catalog surface
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers the public catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})
}

// RegisterAdminRoutes registers the receiving routes
func (h *CatalogHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/products", h.CreateProduct)
	r.Post("/batches", h.CreateBatch)
}

// ListProducts returns a page of products with effective prices
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	products, total, err := h.catalogService.ListProducts(r.Context(), page, pageSize)
	if err != nil {
		h.respondCatalogError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetProduct returns one product with its effective price
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct registers a catalog entry
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product := &domain.Product{
		Name:            req.Name,
		Description:     req.Description,
		BasePrice:       req.BasePrice,
		DiscountPercent: req.DiscountPercent,
		DiscountStart:   req.DiscountStart,
		DiscountEnd:     req.DiscountEnd,
	}
	if err := h.catalogService.CreateProduct(r.Context(), product); err != nil {
		h.respondCatalogError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// CreateBatch records a supplier delivery
func (h *CatalogHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid supplier id")
		return
	}

	batch := &domain.Batch{
		ProductID:       productID,
		SupplierID:      supplierID,
		Received:        req.Received,
		UnitCost:        req.UnitCost,
		SalePrice:       req.SalePrice,
		DiscountPercent: req.DiscountPercent,
		DiscountStart:   req.DiscountStart,
		DiscountEnd:     req.DiscountEnd,
		ExpiryDate:      req.ExpiryDate,
		IsActive:        true,
	}
	if req.IsActive != nil {
		batch.IsActive = *req.IsActive
	}
	if req.ImportedAt != nil {
		batch.ImportedAt = *req.ImportedAt
	}

	if err := h.catalogService.CreateBatch(r.Context(), batch); err != nil {
		h.respondCatalogError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, batch)
}

// respondCatalogError maps service errors to the HTTP taxonomy
func (h *CatalogHandler) respondCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrInvalidPrice):
		middleware.RespondWithError(w, http.StatusBadRequest, "price must not be negative")
	case errors.Is(err, service.ErrInvalidReceived):
		middleware.RespondWithError(w, http.StatusBadRequest, "received quantity must be positive")
	default:
		h.logger.Error("Catalog operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
