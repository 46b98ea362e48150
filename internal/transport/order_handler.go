package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LineItemRequest is one cart line of a checkout or payment request
type LineItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func lineItems(lines []LineItemRequest) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.LineItem{ProductID: uuid.MustParse(line.ProductID), Quantity: line.Quantity})
	}
	return items
}

// CreateOrderRequest represents the checkout payload
type CreateOrderRequest struct {
	ShippingAddress string            `json:"shipping_address" validate:"required,max=255"`
	ShippingCity    string            `json:"shipping_city" validate:"required,max=100"`
	ShippingState   string            `json:"shipping_state" validate:"required,max=100"`
	ShippingCountry string            `json:"shipping_country" validate:"required,max=100"`
	ShippingZipCode string            `json:"shipping_zip_code" validate:"required,max=20"`
	ShippingPhone   string            `json:"shipping_phone" validate:"required,max=20"`
	PaymentMethod   string            `json:"payment_method" validate:"required,oneof=cash credit_card paypal"`
	Notes           *string           `json:"notes" validate:"omitempty,max=1000"`
	Items           []LineItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderRequest carries the only field a customer may change
type UpdateOrderRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

// OrderHandler handles HTTP requests for the caller's orders
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// RegisterRoutes registers the order routes; all of them require a token
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}", h.UpdateOrder)
		r.Delete("/{id}", h.DeleteOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
	})
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve orders")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "", orders)
}

// CreateOrder places an order for the cart in the request body
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), userID, service.PlaceOrderInput{
		Shipping: domain.ShippingAddress{
			Address: req.ShippingAddress,
			City:    req.ShippingCity,
			State:   req.ShippingState,
			Country: req.ShippingCountry,
			ZipCode: req.ShippingZipCode,
			Phone:   req.ShippingPhone,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
		Items:         lineItems(req.Items),
	})
	if err != nil {
		if respondFieldErrors(w, err) || respondOutOfStock(w, err) {
			h.logger.Debug("Order rejected", zap.Error(err))
			return
		}
		h.logger.Error("Failed to create order", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusCreated, "Order created successfully", order)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		h.respondOrderError(w, err, "Failed to retrieve order")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "", order)
}

// UpdateOrder replaces the order notes
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	order, err := h.orders.UpdateNotes(r.Context(), userID, orderID, req.Notes)
	if err != nil {
		h.respondOrderError(w, err, "Failed to update order")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "Order updated successfully", order)
}

// DeleteOrder always refuses; orders are canceled, never deleted
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithError(w, http.StatusForbidden, "Orders cannot be deleted")
}

func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), userID, orderID)
	if err != nil {
		h.respondOrderError(w, err, "Failed to cancel order")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "Order canceled successfully", order)
}

func (h *OrderHandler) respondOrderError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrOrderForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, service.ErrOrderNotPending):
		middleware.RespondWithError(w, http.StatusUnprocessableEntity, "Only pending orders can be canceled")
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
