package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlaceOrderInput is a validated checkout request
type PlaceOrderInput struct {
	Shipping      domain.ShippingAddress
	PaymentMethod domain.PaymentMethod
	Notes         *string
	Items         []domain.LineItem
}

// OrderService defines the order business logic
type OrderService interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*domain.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	UpdateNotes(ctx context.Context, userID, orderID uuid.UUID, notes *string) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	// RecordPayment stores the outcome reported by the payment processor
	RecordPayment(ctx context.Context, orderID uuid.UUID, intentID string, succeeded bool) error
}

type orderService struct {
	store    repository.Store
	tx       database.Transactor
	newStore repository.StoreFactory
	events   events.Publisher
	logger   *zap.Logger
}

// NewOrderService creates a new OrderService. store serves plain reads; writes
// go through tx with repositories built by newStore.
func NewOrderService(
	store repository.Store,
	tx database.Transactor,
	newStore repository.StoreFactory,
	publisher events.Publisher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		store:    store,
		tx:       tx,
		newStore: newStore,
		events:   publisher,
		logger:   logger,
	}
}

type orderLineEvent struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	UserID        uuid.UUID            `json:"user_id"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Items         []orderLineEvent     `json:"items,omitempty"`
}

func newOrderEvent(order *domain.Order) orderEvent {
	ev := orderEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
	}
	for _, item := range order.Items {
		ev.Items = append(ev.Items, orderLineEvent{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	return ev
}

// PlaceOrder locks the ordered products, checks stock, and persists the order
// with its items while taking the stock, all in one transaction
func (s *orderService) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*domain.Order, error) {
	if !input.PaymentMethod.Valid() {
		errs := FieldErrors{}
		errs.Add("payment_method", "The selected payment method is invalid.")
		return nil, errs
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		store := s.newStore(q)

		priced, total, err := priceLines(ctx, store.Products, input.Items, true)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order = &domain.Order{
			ID:              uuid.New(),
			UserID:          userID,
			TotalAmount:     total,
			Status:          domain.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   domain.PaymentStatusPending,
			ShippingAddress: input.Shipping,
			Notes:           input.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items:           make([]domain.OrderItem, 0, len(priced)),
		}

		if err := store.Orders.Create(ctx, order); err != nil {
			return err
		}

		for _, line := range priced {
			item := domain.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: line.Product.ID,
				Quantity:  line.Quantity,
				Price:     line.Product.Price,
				Subtotal:  line.Subtotal,
				CreatedAt: now,
			}
			if err := store.Orders.CreateItem(ctx, &item); err != nil {
				return err
			}

			if err := store.Products.DecrementStock(ctx, line.Product.ID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return &OutOfStockError{ProductName: line.Product.Name, Available: line.Product.Stock}
				}
				return err
			}

			line.Product.Stock -= line.Quantity
			item.Product = line.Product
			order.Items = append(order.Items, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.publish(ctx, events.TopicOrderCreated, order.ID.String(), newOrderEvent(order))

	return order, nil
}

// ListOrders returns the caller's orders, newest first
func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.store.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.Orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order.UserID != userID {
		return nil, ErrOrderForbidden
	}

	return order, nil
}

// UpdateNotes replaces the notes of an order the caller owns
func (s *orderService) UpdateNotes(ctx context.Context, userID, orderID uuid.UUID, notes *string) (*domain.Order, error) {
	if _, err := s.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}

	if err := s.store.Orders.UpdateNotes(ctx, orderID, notes); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	return s.GetOrder(ctx, userID, orderID)
}

// CancelOrder cancels a pending order and puts its items back in stock
func (s *orderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		store := s.newStore(q)

		locked, err := store.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if locked.UserID != userID {
			return ErrOrderForbidden
		}
		if !locked.IsPending() {
			return ErrOrderNotPending
		}

		items, err := store.Orders.ListItems(ctx, locked.ID)
		if err != nil {
			return err
		}

		if err := store.Orders.UpdateStatus(ctx, locked.ID, domain.OrderStatusCanceled); err != nil {
			return err
		}

		sort.Slice(items, func(i, j int) bool {
			return bytes.Compare(items[i].ProductID[:], items[j].ProductID[:]) < 0
		})
		for i := range items {
			if err := store.Products.IncrementStock(ctx, items[i].ProductID, items[i].Quantity); err != nil {
				return err
			}
			if items[i].Product != nil {
				items[i].Product.Stock += items[i].Quantity
			}
		}

		locked.Status = domain.OrderStatusCanceled
		locked.Items = items
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order canceled", zap.String("order_id", order.ID.String()))
	s.publish(ctx, events.TopicOrderCanceled, order.ID.String(), newOrderEvent(order))

	return order, nil
}

func (s *orderService) RecordPayment(ctx context.Context, orderID uuid.UUID, intentID string, succeeded bool) error {
	var (
		order   *domain.Order
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		store := s.newStore(q)

		locked, err := store.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		// a late failure notice never overrides a recorded payment
		if locked.PaymentStatus == domain.PaymentStatusPaid {
			order = locked
			return nil
		}

		status, paymentStatus := locked.Status, domain.PaymentStatusFailed
		if succeeded {
			paymentStatus = domain.PaymentStatusPaid
			if locked.IsPending() {
				status = domain.OrderStatusProcessing
			}
		}

		if err := store.Orders.UpdatePayment(ctx, locked.ID, status, paymentStatus); err != nil {
			return err
		}
		locked.Status, locked.PaymentStatus = status, paymentStatus
		order, changed = locked, true
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Payment recorded",
		zap.String("order_id", orderID.String()),
		zap.String("payment_intent", intentID),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.Bool("changed", changed),
	)
	if changed && succeeded {
		s.publish(ctx, events.TopicPaymentSucceeded, order.ID.String(), newOrderEvent(order))
	}

	return nil
}

func (s *orderService) publish(ctx context.Context, topic, key string, data any) {
	publish(ctx, s.events, s.logger, topic, key, data)
}

// publish hands an event to the publisher after the state change committed.
// Failures are logged and never surface to the caller.
func publish(ctx context.Context, publisher events.Publisher, logger *zap.Logger, topic, key string, data any) {
	if err := publisher.Publish(context.WithoutCancel(ctx), topic, key, data); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
