package transport

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/payment"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxWebhookBytes bounds the webhook payload read into memory
const maxWebhookBytes = 65536

// PaymentIntentRequest is the payload of create-intent
type PaymentIntentRequest struct {
	Items   []LineItemRequest `json:"items" validate:"required,min=1,dive"`
	OrderID string            `json:"order_id" validate:"omitempty,uuid"`
}

// ProcessPaymentRequest is the payload of a direct charge
type ProcessPaymentRequest struct {
	Items           []LineItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethodID string            `json:"payment_method_id" validate:"required"`
	OrderID         string            `json:"order_id" validate:"omitempty,uuid"`
}

// IntentResponse is returned by create-intent
type IntentResponse struct {
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
}

// ChargeResponse is returned by a completed direct charge
type ChargeResponse struct {
	PaymentIntent string            `json:"payment_intent"`
	Amount        decimal.Decimal   `json:"amount"`
	Items         []domain.LineItem `json:"items"`
}

// ActionRequiredResponse tells the client to finish authentication with the secret
type ActionRequiredResponse struct {
	RequiresAction bool   `json:"requires_action"`
	ClientSecret   string `json:"client_secret"`
	PaymentIntent  string `json:"payment_intent"`
}

// PaymentHandler handles checkout payments and processor webhooks
type PaymentHandler struct {
	payments service.PaymentService
	logger   *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// RegisterRoutes registers the payment routes. The webhook is authenticated
// by its signature, not by a bearer token.
func (h *PaymentHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/payment", func(r chi.Router) {
		r.Post("/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/create-intent", h.CreateIntent)
			r.Post("/process", h.ProcessPayment)
		})
	})
}

func optionalOrderID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id := uuid.MustParse(raw)
	return &id
}

// CreateIntent opens a payment for the cart that the browser confirms
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req PaymentIntentRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.payments.CreateIntent(r.Context(), userID, service.PaymentInput{
		Items:   lineItems(req.Items),
		OrderID: optionalOrderID(req.OrderID),
	})
	if err != nil {
		h.respondPaymentError(w, userID, "Failed to create payment intent. Please try again.", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "", IntentResponse{
		ClientSecret: result.ClientSecret,
		Amount:       result.Amount,
	})
}

// ProcessPayment charges the given payment method for the cart
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req ProcessPaymentRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.payments.ProcessPayment(r.Context(), userID, service.PaymentInput{
		Items:           lineItems(req.Items),
		PaymentMethodID: req.PaymentMethodID,
		OrderID:         optionalOrderID(req.OrderID),
	})
	if err != nil {
		h.respondPaymentError(w, userID, "Payment failed. Please try again.", err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "Payment processed successfully", ChargeResponse{
		PaymentIntent: result.PaymentIntentID,
		Amount:        result.Amount,
		Items:         result.Items,
	})
}

// respondPaymentError maps a failed create-intent or charge. An incomplete
// payment is answered with 422 and what the client needs to finish it; every
// other processor failure is a 500 with a generic message.
func (h *PaymentHandler) respondPaymentError(w http.ResponseWriter, userID uuid.UUID, failure string, err error) {
	if respondFieldErrors(w, err) || respondOutOfStock(w, err) {
		return
	}

	var actionErr *payment.ActionRequiredError
	switch {
	case errors.As(err, &actionErr):
		middleware.RespondWithErrorData(w, http.StatusUnprocessableEntity, "Payment requires additional authentication", ActionRequiredResponse{
			RequiresAction: true,
			ClientSecret:   actionErr.Intent.ClientSecret,
			PaymentIntent:  actionErr.Intent.ID,
		})
	case errors.Is(err, service.ErrUserNotFound):
		h.logger.Debug("Payment for unknown user", zap.String("user_id", userID.String()))
		middleware.RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
	case errors.Is(err, service.ErrPaymentFailed):
		h.logger.Warn("Payment declined", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Payment failed. Please try again.")
	default:
		h.logger.Error("Payment processor error", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, failure)
	}
}

// Webhook receives processor notifications signed with the webhook secret
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Debug("Failed to read webhook body", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, payment.ErrInvalidWebhook) {
			h.logger.Warn("Rejected webhook with invalid signature", zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
		h.logger.Error("Failed to handle webhook", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Webhook handling failed")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "", map[string]bool{"received": true})
}
