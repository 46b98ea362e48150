package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrEmptyCart is returned when checking out a cart with no lines
var ErrEmptyCart = errors.New("cart is empty")

// CheckoutDetails is what the customer enters on the checkout form
type CheckoutDetails struct {
	Shipping      domain.ShippingAddress
	PaymentMethod domain.PaymentMethod
	Notes         *string
}

type orderRequest struct {
	domain.ShippingAddress
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Notes         *string              `json:"notes,omitempty"`
	Items         []domain.LineItem    `json:"items"`
}

// PlaceOrder submits items as an order
func (c *Client) PlaceOrder(ctx context.Context, details CheckoutDetails, items []domain.LineItem) (*domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, http.MethodPost, "/orders", nil, orderRequest{
		ShippingAddress: details.Shipping,
		PaymentMethod:   details.PaymentMethod,
		Notes:           details.Notes,
		Items:           items,
	}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Checkout places an order for the cart held in storage and empties the
// stored cart once the order exists. A failed order leaves the cart as it
// was. If clearing fails the order is still returned with the error.
func (c *Client) Checkout(ctx context.Context, storage cart.Storage, details CheckoutDetails) (*domain.Order, error) {
	current, err := storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if current.IsEmpty() {
		return nil, ErrEmptyCart
	}

	order, err := c.PlaceOrder(ctx, details, current.Lines())
	if err != nil {
		return nil, err
	}

	current.Clear()
	if err := storage.Save(ctx, current); err != nil {
		c.logger.Warn("Order placed but cart was not cleared", zap.String("order_id", order.ID.String()), zap.Error(err))
		return order, fmt.Errorf("clear cart: %w", err)
	}
	return order, nil
}

func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+id.String(), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrderNotes(ctx context.Context, id uuid.UUID, notes *string) (*domain.Order, error) {
	var order domain.Order
	body := map[string]*string{"notes": notes}
	if err := c.do(ctx, http.MethodPut, "/orders/"+id.String(), nil, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CancelOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+id.String()+"/cancel", nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// PaymentIntent is an open payment the browser confirms with the client secret
type PaymentIntent struct {
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
}

// Charge is a completed direct payment
type Charge struct {
	PaymentIntent string            `json:"payment_intent"`
	Amount        decimal.Decimal   `json:"amount"`
	Items         []domain.LineItem `json:"items"`
}

// ActionRequiredError is returned by Pay when the card needs customer
// authentication; finish it with the client secret
type ActionRequiredError struct {
	ClientSecret  string `json:"client_secret"`
	PaymentIntent string `json:"payment_intent"`
}

func (e *ActionRequiredError) Error() string {
	return fmt.Sprintf("payment %s requires customer action", e.PaymentIntent)
}

type paymentRequest struct {
	Items           []domain.LineItem `json:"items"`
	PaymentMethodID string            `json:"payment_method_id,omitempty"`
	OrderID         *uuid.UUID        `json:"order_id,omitempty"`
}

// actionRequired turns a 422 carrying requires_action into *ActionRequiredError
func actionRequired(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity || len(apiErr.Data) == 0 {
		return err
	}
	var action struct {
		RequiresAction bool `json:"requires_action"`
		ActionRequiredError
	}
	if json.Unmarshal(apiErr.Data, &action) != nil || !action.RequiresAction {
		return err
	}
	return &action.ActionRequiredError
}

// CreatePaymentIntent opens a payment for the cart lines. orderID is optional
// and lets the payment webhook mark that order paid.
func (c *Client) CreatePaymentIntent(ctx context.Context, items []domain.LineItem, orderID *uuid.UUID) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := c.do(ctx, http.MethodPost, "/payment/create-intent", nil, paymentRequest{Items: items, OrderID: orderID}, &intent)
	if err != nil {
		return nil, actionRequired(err)
	}
	return &intent, nil
}

// Pay charges paymentMethodID for the cart lines
func (c *Client) Pay(ctx context.Context, items []domain.LineItem, paymentMethodID string, orderID *uuid.UUID) (*Charge, error) {
	var charge Charge
	err := c.do(ctx, http.MethodPost, "/payment/process", nil, paymentRequest{
		Items:           items,
		PaymentMethodID: paymentMethodID,
		OrderID:         orderID,
	}, &charge)
	if err != nil {
		return nil, actionRequired(err)
	}
	return &charge, nil
}
