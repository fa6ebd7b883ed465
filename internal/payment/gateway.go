// Package payment adapts hosted payment processors.
package payment

import (
	"context"
	"errors"

	"cabnet/internal/domain"
)

var (
	// ErrTimeout is returned when the processor did not answer in time.
	// The charge may still settle; reconcile through the webhook.
	ErrTimeout = errors.New("payment gateway timeout")

	// ErrInvalidSignature is returned for webhook payloads that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Intent is a created but unconfirmed charge.
type Intent struct {
	Reference   string
	ClientToken string
	Status      domain.PaymentStatus
}

// CheckoutParams describes a hosted checkout page for a single charge.
type CheckoutParams struct {
	AmountCents   int64
	Currency      string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Checkout is a created hosted checkout page. Reference identifies the
// session and is what its webhooks report.
type Checkout struct {
	Reference string
	URL       string
	Status    domain.PaymentStatus
}

// WebhookEvent is a verified settlement notification.
type WebhookEvent struct {
	ID        string
	Type      string
	Reference string
	Status    domain.PaymentStatus
	// Settles is false for event types that carry no settlement state.
	Settles bool
}

// Gateway is a hosted payment processor.
type Gateway interface {
	CreateCharge(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Intent, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (Checkout, error)
	ConfirmCharge(ctx context.Context, reference string) (domain.PaymentStatus, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// Webhook event types that settle a payment.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded  = "charge.refunded"

	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired        = "checkout.session.expired"
)

// checkoutRefPrefix marks gateway references that name a checkout session.
const checkoutRefPrefix = "cs_"

// settlementFor maps a webhook event type to the settlement it reports.
func settlementFor(eventType string) (domain.PaymentStatus, bool) {
	switch eventType {
	case EventIntentSucceeded, EventCheckoutCompleted, EventCheckoutAsyncSucceeded:
		return domain.PaymentStatusCompleted, true
	case EventIntentFailed, EventCheckoutAsyncFailed, EventCheckoutExpired:
		return domain.PaymentStatusFailed, true
	case EventChargeRefunded:
		return domain.PaymentStatusRefunded, true
	}
	return "", false
}

// timeoutErr folds a context deadline into ErrTimeout.
func timeoutErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
