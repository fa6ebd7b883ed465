package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"cabnet/internal/domain"
)

// MockGateway settles every charge immediately. It is used when no
// processor key is configured.
type MockGateway struct{}

// NewMockGateway creates a new MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// CreateCharge implements Gateway.
func (g *MockGateway) CreateCharge(ctx context.Context, amountCents int64, currency string, _ map[string]string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, timeoutErr(ctx, err)
	}
	if amountCents <= 0 {
		return Intent{}, fmt.Errorf("amount must be positive, got %d", amountCents)
	}
	ref := "mock_pi_" + uuid.NewString()
	return Intent{Reference: ref, ClientToken: ref + "_secret", Status: domain.PaymentStatusPending}, nil
}

// CreateCheckoutSession implements Gateway. The returned URL lands
// directly on the success page.
func (g *MockGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (Checkout, error) {
	if err := ctx.Err(); err != nil {
		return Checkout{}, timeoutErr(ctx, err)
	}
	if p.AmountCents <= 0 {
		return Checkout{}, fmt.Errorf("amount must be positive, got %d", p.AmountCents)
	}
	if p.SuccessURL == "" || p.CancelURL == "" {
		return Checkout{}, fmt.Errorf("success and cancel urls are required")
	}
	ref := checkoutRefPrefix + "mock_" + uuid.NewString()
	return Checkout{Reference: ref, URL: p.SuccessURL, Status: domain.PaymentStatusPending}, nil
}

// ConfirmCharge implements Gateway.
func (g *MockGateway) ConfirmCharge(ctx context.Context, _ string) (domain.PaymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", timeoutErr(ctx, err)
	}
	return domain.PaymentStatusCompleted, nil
}

// ParseWebhook accepts unsigned {"id","type","reference"} payloads.
func (g *MockGateway) ParseWebhook(payload []byte, _ string) (WebhookEvent, error) {
	var body struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := WebhookEvent{ID: body.ID, Type: body.Type, Reference: body.Reference}
	out.Status, out.Settles = settlementFor(body.Type)
	return out, nil
}
