package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
	"cabnet/internal/service"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 64 << 10

// PaymentService charges completed rides.
type PaymentService interface {
	CreateIntent(ctx context.Context, rideID, riderID string) (*service.PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutSession, error)
	Confirm(ctx context.Context, rideID, riderID, reference string) (*domain.Payment, error)
	History(ctx context.Context, riderID string) ([]*domain.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateIntentRequest is the HTTP request body for opening a charge.
type CreateIntentRequest struct {
	RideID string `json:"rideId" binding:"required"`
}

// CheckoutSessionRequest is the HTTP request body for a hosted checkout.
type CheckoutSessionRequest struct {
	RideID     string `json:"rideId" binding:"required"`
	Email      string `json:"email"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// ConfirmPaymentRequest is the HTTP request body for confirming a charge.
type ConfirmPaymentRequest struct {
	RideID          string `json:"rideId" binding:"required"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreateIntent handles POST /api/payments/create-intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	intent, err := h.payments.CreateIntent(c.Request.Context(), req.RideID, caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"clientSecret": intent.ClientToken,
		"payment":      toPaymentResponse(intent.Payment),
	})
}

// CreateCheckoutSession handles POST /api/payments/create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.payments.CreateCheckoutSession(c.Request.Context(), service.CheckoutRequest{
		RideID:        req.RideID,
		RiderID:       caller.ID,
		CustomerEmail: req.Email,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"url":     session.URL,
		"payment": toPaymentResponse(session.Payment),
	})
}

// Confirm handles POST /api/payments/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.payments.Confirm(c.Request.Context(), req.RideID, caller.ID, req.PaymentIntentID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"payment": toPaymentResponse(p)})
}

// History handles GET /api/payments/history
func (h *PaymentHandler) History(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	payments, err := h.payments.History(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	respondJSON(c, http.StatusOK, gin.H{"payments": out})
}

// Webhook handles POST /api/payments/webhook. The body is read raw because
// the signature covers the exact bytes.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "unreadable body"})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"received": true})
}
