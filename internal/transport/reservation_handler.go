package transport

import (
	"errors"
	"net/http"

	"freshmart/internal/domain"
	"freshmart/internal/middleware"
	"freshmart/internal/repository"
	"freshmart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReserveCartRequest represents the add-to-cart payload
type ReserveCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// ConfirmCheckoutRequest represents the cart-to-checkout payload.
// ProductIDs is optional; empty means every cart line.
type ConfirmCheckoutRequest struct {
	ProductIDs []string `json:"product_ids" validate:"omitempty,dive,uuid4"`
}

// ConfirmReservationRequest links a paid order to its reservation
type ConfirmReservationRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
}

// ReservationResponse represents a reservation with its line items
type ReservationResponse struct {
	ReservationID string                    `json:"reservation_id"`
	Kind          string                    `json:"kind"`
	Status        string                    `json:"status"`
	ExpiresAt     string                    `json:"expires_at"`
	LineItems     []ReservationItemResponse `json:"line_items"`
}

// ReservationItemResponse represents one held line
type ReservationItemResponse struct {
	ProductID       string `json:"product_id"`
	BatchID         string `json:"batch_id"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	DiscountPercent int    `json:"discount_percent"`
}

// ReservationHandler handles HTTP requests for stock reservations
type ReservationHandler struct {
	reservationService service.ReservationService
	logger             *zap.Logger
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservationService service.ReservationService, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
		logger:             logger,
	}
}

// RegisterRoutes registers all reservation routes
func (h *ReservationHandler) RegisterRoutes(r chi.Router, holderMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/reservations", func(r chi.Router) {
		r.Use(holderMiddleware)
		r.Post("/cart", h.ReserveCart)
		r.Post("/checkout", h.ConfirmCheckout)
		r.Post("/{id}/confirm", h.ConfirmReservation)
		r.Post("/{id}/release", h.ReleaseReservation)
		r.Get("/", h.MyReservations)
	})
}

// ReserveCart handles add-to-cart stock holds
func (h *ReservationHandler) ReserveCart(w http.ResponseWriter, r *http.Request) {
	var req ReserveCartRequest
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

	holder := holderFromRequest(r)
	reservation, err := h.reservationService.ReserveForCart(r.Context(), holder, productID, req.Quantity)
	if err != nil {
		h.respondReservationError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, toReservationResponse(reservation))
}

// ConfirmCheckout promotes cart lines into a checkout reservation
func (h *ReservationHandler) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	var req ConfirmCheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productIDs := make([]uuid.UUID, 0, len(req.ProductIDs))
	for _, idStr := range req.ProductIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		productIDs = append(productIDs, id)
	}

	holder := holderFromRequest(r)
	reservation, err := h.reservationService.ConfirmForCheckout(r.Context(), holder, productIDs)
	if err != nil {
		h.respondReservationError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, toReservationResponse(reservation))
}

// ConfirmReservation links a paid order to an active reservation
func (h *ReservationHandler) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req ConfirmReservationRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.reservationService.ConfirmPayment(r.Context(), reservationID, orderID); err != nil {
		h.respondReservationError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ReleaseReservation releases an active reservation
func (h *ReservationHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	if err := h.reservationService.Release(r.Context(), reservationID); err != nil {
		h.respondReservationError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// MyReservations lists the shopper's live reservations
func (h *ReservationHandler) MyReservations(w http.ResponseWriter, r *http.Request) {
	var kind *domain.ReservationKind
	switch r.URL.Query().Get("kind") {
	case "":
	case string(domain.ReservationKindCart):
		k := domain.ReservationKindCart
		kind = &k
	case string(domain.ReservationKindCheckout):
		k := domain.ReservationKindCheckout
		kind = &k
	default:
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid reservation kind")
		return
	}

	holder := holderFromRequest(r)
	reservations, err := h.reservationService.MyReservations(r.Context(), holder, kind)
	if err != nil {
		h.respondReservationError(w, err)
		return
	}

	responses := make([]ReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		responses = append(responses, toReservationResponse(reservation))
	}
	middleware.RespondWithJSON(w, http.StatusOK, responses)
}

// respondReservationError maps service errors to the HTTP taxonomy
func (h *ReservationHandler) respondReservationError(w http.ResponseWriter, err error) {
	var insufficient *repository.InsufficientStockError
	if errors.As(err, &insufficient) {
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "insufficient stock", map[string]interface{}{
			"product_id": insufficient.ProductID.String(),
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		})
		return
	}

	var unavailable *repository.LineUnavailableError
	if errors.As(err, &unavailable) {
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "line item unavailable", map[string]interface{}{
			"product_id": unavailable.ProductID.String(),
		})
		return
	}

	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrReservationNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, repository.ErrNoActiveCart):
		middleware.RespondWithError(w, http.StatusNotFound, "no active cart reservation")
	case errors.Is(err, repository.ErrAlreadyConfirmed):
		middleware.RespondWithError(w, http.StatusConflict, "reservation already confirmed")
	case errors.Is(err, repository.ErrInvalidReservationState):
		middleware.RespondWithError(w, http.StatusConflict, "reservation is not active")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, "quantity must be positive")
	default:
		h.logger.Error("Reservation operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toReservationResponse(reservation *domain.Reservation) ReservationResponse {
	items := make([]ReservationItemResponse, 0, len(reservation.Items))
	for _, item := range reservation.Items {
		items = append(items, ReservationItemResponse{
			ProductID:       item.ProductID.String(),
			BatchID:         item.BatchID.String(),
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		})
	}
	return ReservationResponse{
		ReservationID: reservation.ID.String(),
		Kind:          string(reservation.Kind),
		Status:        string(reservation.Status),
		ExpiresAt:     reservation.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		LineItems:     items,
	}
}
