package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stripe accepts at most 50 metadata keys with values of up to 500 characters
const (
	maxMetadataKeys     = 50
	maxMetadataValueLen = 500
	// user_id, order_id, item_count and items_truncated
	reservedMetadataKeys = 4
)

// cartMetadata encodes lines as comma separated "product_id:quantity" pairs
// spread over items_0, items_1, ... Lines that do not fit are left out and
// items_truncated is set; item_count always holds the full line count.
func cartMetadata(lines []domain.LineItem) map[string]string {
	meta := map[string]string{"item_count": strconv.Itoa(len(lines))}
	maxChunks := maxMetadataKeys - reservedMetadataKeys

	var chunk strings.Builder
	chunks := 0
	flush := func() {
		meta["items_"+strconv.Itoa(chunks)] = chunk.String()
		chunks++
		chunk.Reset()
	}

	for _, line := range lines {
		entry := line.ProductID.String() + ":" + strconv.Itoa(line.Quantity)
		if chunk.Len() > 0 && chunk.Len()+1+len(entry) > maxMetadataValueLen {
			flush()
			if chunks == maxChunks {
				meta["items_truncated"] = "true"
				return meta
			}
		}
		if chunk.Len() > 0 {
			chunk.WriteByte(',')
		}
		chunk.WriteString(entry)
	}
	if chunk.Len() > 0 {
		flush()
	}
	return meta
}

// PaymentInput is the cart to charge. PaymentMethodID is only used by
// ProcessPayment. OrderID, when set, is passed to the processor so the webhook
// can record the outcome on that order.
type PaymentInput struct {
	Items           []domain.LineItem
	PaymentMethodID string
	OrderID         *uuid.UUID
}

// PaymentResult describes a created or completed charge
type PaymentResult struct {
	PaymentIntentID string
	ClientSecret    string
	Status          string
	Amount          decimal.Decimal
	Items           []domain.LineItem
}

// PaymentService defines the payment business logic
type PaymentService interface {
	// CreateIntent prices the cart and opens a payment the browser confirms
	CreateIntent(ctx context.Context, userID uuid.UUID, input PaymentInput) (*PaymentResult, error)
	// ProcessPayment prices the cart and charges the given payment method
	ProcessPayment(ctx context.Context, userID uuid.UUID, input PaymentInput) (*PaymentResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type paymentService struct {
	store     repository.Store
	processor payment.Processor
	orders    OrderService
	currency  string
	logger    *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	store repository.Store,
	processor payment.Processor,
	orders OrderService,
	currency string,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		store:     store,
		processor: processor,
		orders:    orders,
		currency:  currency,
		logger:    logger,
	}
}

func (s *paymentService) CreateIntent(ctx context.Context, userID uuid.UUID, input PaymentInput) (*PaymentResult, error) {
	return s.charge(ctx, userID, input, false)
}

func (s *paymentService) ProcessPayment(ctx context.Context, userID uuid.UUID, input PaymentInput) (*PaymentResult, error) {
	if input.PaymentMethodID == "" {
		errs := FieldErrors{}
		errs.Add("payment_method_id", "The payment method id field is required.")
		return nil, errs
	}
	return s.charge(ctx, userID, input, true)
}

func (s *paymentService) charge(ctx context.Context, userID uuid.UUID, input PaymentInput, confirm bool) (*PaymentResult, error) {
	// The client total is never trusted; price the cart from the catalog
	_, total, err := priceLines(ctx, s.store.Products, input.Items, false)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	metadata := cartMetadata(mergeLines(input.Items))
	metadata["user_id"] = user.ID.String()
	if input.OrderID != nil {
		metadata["order_id"] = input.OrderID.String()
	}

	intent, err := s.processor.CreateIntent(ctx, payment.IntentParams{
		AmountMinor:     payment.ToMinorUnits(total),
		Currency:        s.currency,
		CustomerID:      customerID,
		PaymentMethodID: input.PaymentMethodID,
		Confirm:         confirm,
		Metadata:        metadata,
	})
	if err != nil {
		var actionErr *payment.ActionRequiredError
		switch {
		case errors.As(err, &actionErr):
			s.logger.Info("Payment requires customer action",
				zap.String("user_id", user.ID.String()),
				zap.String("payment_intent", actionErr.Intent.ID),
			)
			return nil, err
		case errors.Is(err, payment.ErrDeclined):
			s.logger.Info("Payment declined", zap.String("user_id", user.ID.String()), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		default:
			return nil, fmt.Errorf("failed to create payment: %w", err)
		}
	}

	s.logger.Info("Payment intent created",
		zap.String("user_id", user.ID.String()),
		zap.String("payment_intent", intent.ID),
		zap.String("status", intent.Status),
		zap.Int64("amount_minor", intent.AmountMinor),
	)

	return &PaymentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          intent.Status,
		Amount:          total,
		Items:           input.Items,
	}, nil
}

// ensureCustomer returns the user's processor customer id, creating and
// storing it on first use
func (s *paymentService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := s.processor.CreateCustomer(ctx, user.Email, user.Name, map[string]string{"user_id": user.ID.String()})
	if err != nil {
		return "", fmt.Errorf("failed to create payment customer: %w", err)
	}

	if err := s.store.Users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", fmt.Errorf("failed to store payment customer: %w", err)
	}
	user.StripeCustomerID = &customerID

	return customerID, nil
}

// HandleWebhook verifies a processor notification and records payment
// outcomes on the order named in the intent metadata
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	var succeeded bool
	switch event.Type {
	case payment.EventIntentSucceeded:
		succeeded = true
	case payment.EventIntentFailed:
		succeeded = false
	default:
		s.logger.Debug("Ignoring webhook event", zap.String("type", event.Type))
		return nil
	}

	rawOrderID := event.Metadata["order_id"]
	if rawOrderID == "" {
		s.logger.Debug("Webhook event without order", zap.String("payment_intent", event.IntentID))
		return nil
	}

	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		s.logger.Warn("Webhook event with malformed order id",
			zap.String("payment_intent", event.IntentID),
			zap.String("order_id", rawOrderID),
		)
		return nil
	}

	if err := s.orders.RecordPayment(ctx, orderID, event.IntentID, succeeded); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			s.logger.Warn("Webhook event for unknown order", zap.String("order_id", rawOrderID))
			return nil
		}
		return err
	}

	return nil
}
