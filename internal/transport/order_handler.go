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

// CreateOrderRequest converts a checkout reservation into an order
type CreateOrderRequest struct {
	ReservationID   string `json:"reservation_id" validate:"required,uuid4"`
	CustomerName    string `json:"customer_name" validate:"required,min=1,max=255"`
	CustomerPhone   string `json:"customer_phone" validate:"required,min=5,max=32"`
	ShippingAddress string `json:"shipping_address" validate:"required,min=1,max=500"`
}

// ConfirmPaymentRequest carries the payment gateway callback fields
type ConfirmPaymentRequest struct {
	TxnID   *string `json:"txn_id" validate:"omitempty,max=255"`
	Channel *string `json:"channel" validate:"omitempty,max=64"`
}

// CancelPaymentRequest carries an optional cancellation reason
type CancelPaymentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

// UpdateOrderStatusRequest moves an order along its fulfilment states
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=paid shipped completed cancelled"`
}

// OrderHandler handles HTTP requests for orders and payments
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers order and payment routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, holderMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(holderMiddleware)
		r.Post("/", h.CreateOrder)
	})

	// Payments are holder-scoped: the session key or user behind the
	// request must match the order's holder.
	r.Route("/api/payments", func(r chi.Router) {
		r.Use(holderMiddleware)
		r.Get("/{orderID}/session", h.GetPaymentSession)
		r.Post("/{orderID}/confirm", h.ConfirmPayment)
		r.Post("/{orderID}/cancel", h.CancelPayment)
	})
}

// RegisterAdminRoutes registers the back-office order routes
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Patch("/orders/{orderID}/status", h.UpdateStatus)
}

// CreateOrder converts a checkout reservation into a pending order
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	holder := holderFromRequest(r)
	order, err := h.orderService.Checkout(r.Context(), holder, service.CheckoutInput{
		ReservationID:   reservationID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// GetPaymentSession returns the order with its remaining payment window
func (h *OrderHandler) GetPaymentSession(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	session, err := h.orderService.GetPaymentSession(r.Context(), holderFromRequest(r), orderID)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, session)
}

// ConfirmPayment marks a pending order as paid
func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req ConfirmPaymentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.ConfirmPayment(r.Context(), holderFromRequest(r), orderID, req.TxnID, req.Channel)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// CancelPayment cancels a pending order and restores its inventory
func (h *OrderHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req CancelPaymentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.CancelPayment(r.Context(), holderFromRequest(r), orderID, req.Reason)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateStatus applies a fulfilment transition to an order
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// respondOrderError maps service errors to the HTTP taxonomy
func (h *OrderHandler) respondOrderError(w http.ResponseWriter, err error) {
	var unavailable *repository.LineUnavailableError
	if errors.As(err, &unavailable) {
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "line item unavailable", map[string]interface{}{
			"product_id": unavailable.ProductID.String(),
		})
		return
	}

	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, repository.ErrReservationNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, service.ErrReservationNotOwned):
		middleware.RespondWithError(w, http.StatusForbidden, "reservation does not belong to this session")
	case errors.Is(err, service.ErrOrderNotOwned):
		middleware.RespondWithError(w, http.StatusForbidden, "order does not belong to this session")
	case errors.Is(err, service.ErrReservationWrongKind):
		middleware.RespondWithError(w, http.StatusConflict, "only checkout reservations can become orders")
	case errors.Is(err, repository.ErrInvalidReservationState):
		middleware.RespondWithError(w, http.StatusConflict, "reservation is no longer active")
	case errors.Is(err, service.ErrOrderExpired):
		middleware.RespondWithError(w, http.StatusGone, "payment window has closed")
	case errors.Is(err, repository.ErrOrderNotPending):
		middleware.RespondWithError(w, http.StatusBadRequest, "order is not awaiting payment")
	case errors.Is(err, repository.ErrOrderNotCancellable):
		middleware.RespondWithError(w, http.StatusConflict, "order can no longer be cancelled")
	case errors.Is(err, repository.ErrInvalidTransition):
		middleware.RespondWithError(w, http.StatusConflict, "invalid status transition")
	default:
		h.logger.Error("Order operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
