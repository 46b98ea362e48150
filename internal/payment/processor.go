package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined is returned when the processor refused the charge
	ErrDeclined = errors.New("payment declined")
	// ErrInvalidWebhook is returned for payloads whose signature does not verify
	ErrInvalidWebhook = errors.New("invalid webhook payload")
)

// Intent statuses the workflow reacts to
const (
	StatusSucceeded      = "succeeded"
	StatusRequiresAction = "requires_action"
)

// Webhook event types the storefront handles
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// IntentParams describes a charge to create
type IntentParams struct {
	AmountMinor     int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	// Confirm charges the payment method immediately instead of returning a
	// client secret for the browser to confirm
	Confirm  bool
	Metadata map[string]string
}

// Intent is the processor's view of a charge
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
}

// ActionRequiredError reports a charge that needs customer authentication
// (3-D Secure) before it can complete
type ActionRequiredError struct {
	Intent *Intent
}

func (e *ActionRequiredError) Error() string {
	return fmt.Sprintf("payment %s requires customer action", e.Intent.ID)
}

// WebhookEvent is a verified processor notification about a payment intent
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
	Metadata map[string]string
}

// Processor is the payment gateway used by the checkout workflow
type Processor interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// ToMinorUnits converts an amount to cents, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
