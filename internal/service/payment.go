package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cabnet/internal/domain"
	"cabnet/internal/payment"
	"cabnet/internal/pricing"
	"cabnet/internal/repository"
)

const (
	defaultGatewayTimeout = 5 * time.Second
	defaultReturnBaseURL  = "http://localhost:3000"
	paymentHistoryLimit   = 50
)

// PaymentService charges completed rides through the payment gateway.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	rideRepo    repository.RideRepository
	gateway     payment.Gateway
	timeout     time.Duration
	returnBase  string
	logger      *slog.Logger
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService. Gateway calls are bounded
// by timeout; non-positive values use a 5s default.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	rideRepo repository.RideRepository,
	gateway payment.Gateway,
	timeout time.Duration,
	logger *slog.Logger,
) *PaymentService {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &PaymentService{
		paymentRepo: paymentRepo,
		rideRepo:    rideRepo,
		gateway:     gateway,
		timeout:     timeout,
		returnBase:  defaultReturnBaseURL,
		logger:      logger,
		now:         time.Now,
	}
}

// PaymentIntent is a charge the rider still has to authorize.
type PaymentIntent struct {
	Payment     *domain.Payment
	ClientToken string
}

// idempotencyKey identifies the single payment of a ride.
func idempotencyKey(rideID string) string {
	return fmt.Sprintf("payment:%s", rideID)
}

// CreateIntent opens a charge for the fare of a completed ride. Repeated
// calls replace the gateway reference of the same pending payment.
func (s *PaymentService) CreateIntent(ctx context.Context, rideID, riderID string) (*PaymentIntent, error) {
	ride, existing, key, err := s.openCharge(ctx, rideID, riderID)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	intent, err := s.gateway.CreateCharge(gctx, pricing.Cents(ride.Fare.Total), ride.Fare.Currency, map[string]string{
		"rideId":  ride.ID,
		"riderId": ride.RiderID,
	})
	if err != nil {
		return nil, gatewayError("create charge", err)
	}

	p, err := s.recordIntent(ctx, ride, existing, key, intent.Reference)
	if err != nil {
		return nil, err
	}

	if err := s.rideRepo.UpdatePayment(ctx, ride.ID, domain.RidePayment{
		Method:         p.Method,
		Status:         domain.PaymentStatusPending,
		TransactionRef: intent.Reference,
	}); err != nil {
		return nil, upstream("update ride payment", err)
	}

	s.logger.InfoContext(ctx, "payment intent created",
		slog.String("ride_id", ride.ID),
		slog.String("payment_id", p.ID),
		slog.Float64("amount", p.Amount),
	)
	return &PaymentIntent{Payment: p, ClientToken: intent.ClientToken}, nil
}

// CheckoutRequest asks for a hosted checkout page for a ride's fare.
// Empty URLs fall back to the configured return pages.
type CheckoutRequest struct {
	RideID        string
	RiderID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is a hosted page the rider is redirected to.
type CheckoutSession struct {
	Payment *domain.Payment
	URL     string
}

// CreateCheckoutSession opens a hosted checkout for the fare of a completed
// ride. It shares the ride's single payment with CreateIntent: the session
// becomes the payment's gateway reference and settles through the webhook.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	successURL, err := s.returnURL(req.SuccessURL, "success")
	if err != nil {
		return nil, err
	}
	cancelURL, err := s.returnURL(req.CancelURL, "cancel")
	if err != nil {
		return nil, err
	}
	if req.CustomerEmail != "" {
		if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
			return nil, errorf(ErrValidation, "invalid customer email")
		}
	}

	ride, existing, key, err := s.openCharge(ctx, req.RideID, req.RiderID)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	co, err := s.gateway.CreateCheckoutSession(gctx, payment.CheckoutParams{
		AmountCents:   pricing.Cents(ride.Fare.Total),
		Currency:      ride.Fare.Currency,
		Description:   checkoutDescription(ride),
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Metadata: map[string]string{
			"rideId":  ride.ID,
			"riderId": ride.RiderID,
		},
	})
	if err != nil {
		return nil, gatewayError("create checkout session", err)
	}

	p, err := s.recordIntent(ctx, ride, existing, key, co.Reference)
	if err != nil {
		return nil, err
	}

	if err := s.rideRepo.UpdatePayment(ctx, ride.ID, domain.RidePayment{
		Method:         p.Method,
		Status:         domain.PaymentStatusPending,
		TransactionRef: co.Reference,
	}); err != nil {
		return nil, upstream("update ride payment", err)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("ride_id", ride.ID),
		slog.String("payment_id", p.ID),
		slog.Float64("amount", p.Amount),
	)
	return &CheckoutSession{Payment: p, URL: co.URL}, nil
}

// SetReturnBaseURL sets the site that default checkout return pages live on.
func (s *PaymentService) SetReturnBaseURL(base string) {
	s.returnBase = strings.TrimRight(base, "/")
}

// returnURL validates a caller supplied return page or builds the default.
func (s *PaymentService) returnURL(raw, outcome string) (string, error) {
	if raw == "" {
		return s.returnBase + "/user/dashboard?payment=" + outcome, nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errorf(ErrValidation, "%s url must be an absolute http(s) url", outcome)
	}
	return u.String(), nil
}

func checkoutDescription(ride *domain.Ride) string {
	return fmt.Sprintf("CabNet %s ride", ride.RideType)
}

// openCharge loads a completed ride of the rider together with its payment,
// if any, and rejects rides that are already paid. A failed payment is
// reset to pending so it can be retried.
func (s *PaymentService) openCharge(ctx context.Context, rideID, riderID string) (*domain.Ride, *domain.Payment, string, error) {
	ride, err := s.riderRide(ctx, rideID, riderID)
	if err != nil {
		return nil, nil, "", err
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, nil, "", ErrRideNotCompleted
	}

	key := idempotencyKey(ride.ID)
	existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, nil, "", upstream("load payment", err)
	}
	if existing != nil {
		switch existing.Status {
		case domain.PaymentStatusCompleted, domain.PaymentStatusRefunded, domain.PaymentStatusProcessing:
			return nil, nil, "", ErrAlreadyPaid
		case domain.PaymentStatusFailed:
			// A failed charge may be retried with a fresh intent.
			if err := s.paymentRepo.UpdateStatus(ctx, existing.ID, domain.PaymentStatusPending); err != nil {
				return nil, nil, "", upstream("reset payment", err)
			}
			existing.Status = domain.PaymentStatusPending
		}
	}
	return ride, existing, key, nil
}

// recordIntent stores ref on the ride's payment, creating it on first use.
func (s *PaymentService) recordIntent(ctx context.Context, ride *domain.Ride, existing *domain.Payment, key, ref string) (*domain.Payment, error) {
	if existing == nil {
		now := s.now().UTC()
		p := &domain.Payment{
			ID:             uuid.New().String(),
			RideID:         ride.ID,
			RiderID:        ride.RiderID,
			DriverID:       ride.DriverID,
			Amount:         ride.Fare.Total,
			Currency:       ride.Fare.Currency,
			Status:         domain.PaymentStatusPending,
			Method:         domain.PaymentMethodCard,
			GatewayRef:     ref,
			IdempotencyKey: key,
			Breakdown:      ride.Fare,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err := s.paymentRepo.Create(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, upstream("create payment", err)
		}
		// A concurrent request created the row first.
		if existing, err = s.paymentRepo.GetByIdempotencyKey(ctx, key); err != nil || existing == nil {
			return nil, upstream("load payment", errors.Join(repository.ErrNotFound, err))
		}
	}

	if err := s.paymentRepo.AttachGatewayRef(ctx, existing.ID, ref); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrAlreadyPaid
		}
		return nil, upstream("attach gateway reference", err)
	}
	existing.GatewayRef = ref
	return existing, nil
}

// Confirm asks the gateway for the outcome of the ride's charge. A gateway
// timeout is not an error: the payment stays pending and the webhook
// settles it later.
func (s *PaymentService) Confirm(ctx context.Context, rideID, riderID, reference string) (*domain.Payment, error) {
	ride, err := s.riderRide(ctx, rideID, riderID)
	if err != nil {
		return nil, err
	}

	p, err := s.paymentRepo.GetByIdempotencyKey(ctx, idempotencyKey(ride.ID))
	if err != nil {
		return nil, upstream("load payment", err)
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	if p.Status.IsTerminal() {
		return p, nil
	}
	if reference != "" && reference != p.GatewayRef {
		return nil, ErrReferenceMismatch
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.gateway.ConfirmCharge(gctx, p.GatewayRef)
	if err != nil {
		if errors.Is(err, payment.ErrTimeout) {
			s.logger.WarnContext(ctx, "payment confirmation timed out",
				slog.String("payment_id", p.ID),
				slog.Any("error", err),
			)
			return p, nil
		}
		return nil, gatewayError("confirm charge", err)
	}

	if status != p.Status {
		if err := s.settle(ctx, p, status); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// HandleWebhook applies a verified gateway notification.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(body, signature)
	if err != nil {
		s.logger.WarnContext(ctx, "webhook rejected", slog.Any("error", err))
		return ErrInvalidWebhook
	}
	if !event.Settles {
		return nil
	}

	p, err := s.paymentRepo.GetByGatewayRef(ctx, event.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.WarnContext(ctx, "webhook for unknown payment",
				slog.String("event_id", event.ID),
				slog.String("reference", event.Reference),
			)
			return nil
		}
		return upstream("load payment", err)
	}

	if !canSettle(p.Status, event.Status) {
		return nil
	}
	return s.settle(ctx, p, event.Status)
}

// History lists the rider's payments, newest first.
func (s *PaymentService) History(ctx context.Context, riderID string) ([]*domain.Payment, error) {
	payments, err := s.paymentRepo.ListByRider(ctx, riderID, paymentHistoryLimit)
	if err != nil {
		return nil, upstream("list payments", err)
	}
	return payments, nil
}

// settle records status on the payment row and the ride summary.
func (s *PaymentService) settle(ctx context.Context, p *domain.Payment, status domain.PaymentStatus) error {
	if err := s.paymentRepo.UpdateStatus(ctx, p.ID, status); err != nil {
		return upstream("update payment", err)
	}
	p.Status = status

	if err := s.rideRepo.UpdatePayment(ctx, p.RideID, domain.RidePayment{
		Method:         p.Method,
		Status:         status,
		TransactionRef: p.GatewayRef,
	}); err != nil {
		return upstream("update ride payment", err)
	}

	s.logger.InfoContext(ctx, "payment settled",
		slog.String("payment_id", p.ID),
		slog.String("ride_id", p.RideID),
		slog.String("status", string(status)),
	)
	return nil
}

func (s *PaymentService) riderRide(ctx context.Context, rideID, riderID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, upstream("load ride", err)
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideParty
	}
	return ride, nil
}

// canSettle reports whether a webhook may move a payment from -> to.
// Settled payments only move to refunded.
func canSettle(from, to domain.PaymentStatus) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() {
		return from == domain.PaymentStatusCompleted && to == domain.PaymentStatusRefunded
	}
	return true
}

func gatewayError(op string, err error) error {
	if errors.Is(err, payment.ErrTimeout) {
		return fmt.Errorf("%s: %w", op, errors.Join(ErrUpstreamTimeout, err))
	}
	return upstream(op, err)
}
