package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"cabnet/internal/domain"
)

// StripeGateway implements Gateway with Stripe PaymentIntents.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a StripeGateway for the given secret key.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// CreateCharge creates a PaymentIntent and returns its client secret.
func (g *StripeGateway) CreateCharge(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", timeoutErr(ctx, err))
	}
	return Intent{Reference: pi.ID, ClientToken: pi.ClientSecret, Status: intentStatus(pi.Status)}, nil
}

// CreateCheckoutSession creates a hosted Checkout Session for one card charge.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(p.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.Metadata["rideId"]),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: p.Metadata,
		},
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	cs, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("create checkout session: %w", timeoutErr(ctx, err))
	}
	return Checkout{Reference: cs.ID, URL: cs.URL, Status: sessionStatus(cs)}, nil
}

// ConfirmCharge retrieves the PaymentIntent, or the Checkout Session for
// session references, and reports its settlement state.
func (g *StripeGateway) ConfirmCharge(ctx context.Context, reference string) (domain.PaymentStatus, error) {
	if strings.HasPrefix(reference, checkoutRefPrefix) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		cs, err := g.api.CheckoutSessions.Get(reference, params)
		if err != nil {
			return "", fmt.Errorf("retrieve checkout session: %w", timeoutErr(ctx, err))
		}
		return sessionStatus(cs), nil
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		return "", fmt.Errorf("retrieve payment intent: %w", timeoutErr(ctx, err))
	}
	return intentStatus(pi.Status), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	out.Status, out.Settles = settlementFor(out.Type)
	if !out.Settles {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutAsyncFailed, EventCheckoutExpired:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Reference = cs.ID
		// Delayed payment methods complete the session before the money moves.
		if out.Type == EventCheckoutCompleted && cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			out.Status = domain.PaymentStatusProcessing
		}
	case EventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			out.Reference = charge.PaymentIntent.ID
		}
	default:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Reference = pi.ID
	}
	return out, nil
}

func sessionStatus(cs *stripe.CheckoutSession) domain.PaymentStatus {
	switch {
	case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return domain.PaymentStatusCompleted
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}

func intentStatus(s stripe.PaymentIntentStatus) domain.PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentStatusCompleted
	case stripe.PaymentIntentStatusProcessing:
		return domain.PaymentStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}
