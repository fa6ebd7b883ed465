package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
	"cabnet/internal/service"
)

// IdentityService registers and authenticates riders and drivers.
type IdentityService interface {
	SignupRider(ctx context.Context, req service.SignupRiderRequest) (*service.Session, error)
	SignupDriver(ctx context.Context, req service.SignupDriverRequest) (*service.Session, error)
	Login(ctx context.Context, clerkID, email string) (*service.Session, error)
	GetRider(ctx context.Context, riderID string) (*domain.Rider, error)
	UpdateRider(ctx context.Context, riderID string, update service.RiderProfileUpdate) (*domain.Rider, error)
}

// AuthHandler handles signup and login.
type AuthHandler struct {
	identity IdentityService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(identity IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// SignupUserRequest is the HTTP request body for rider signup.
type SignupUserRequest struct {
	ClerkID     string `json:"clerkId" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	FirstName   string `json:"firstName" binding:"omitempty,min=2,max=50"`
	LastName    string `json:"lastName" binding:"omitempty,min=2,max=50"`
	PhoneNumber string `json:"phoneNumber"`
}

// SignupDriverRequest is the HTTP request body for driver signup.
type SignupDriverRequest struct {
	ClerkID       string      `json:"clerkId" binding:"required"`
	Email         string      `json:"email" binding:"required,email"`
	FirstName     string      `json:"firstName" binding:"omitempty,min=2,max=50"`
	LastName      string      `json:"lastName" binding:"omitempty,min=2,max=50"`
	PhoneNumber   string      `json:"phoneNumber"`
	LicenseNumber string      `json:"licenseNumber" binding:"required,min=5,max=20"`
	Vehicle       vehicleBody `json:"vehicleInfo" binding:"required"`
}

// LoginRequest is the HTTP request body for login.
type LoginRequest struct {
	ClerkID string `json:"clerkId"`
	Email   string `json:"email"`
}

func toSessionBody(s *service.Session) gin.H {
	body := gin.H{
		"token":     s.Token,
		"expiresAt": s.ExpiresAt,
		"role":      string(s.Identity.Role),
	}
	if s.Rider != nil {
		body["user"] = toRiderResponse(s.Rider)
	}
	if s.Driver != nil {
		body["driver"] = toDriverResponse(s.Driver)
	}
	return body
}

// SignupUser handles POST /api/auth/signup/user
func (h *AuthHandler) SignupUser(c *gin.Context) {
	var req SignupUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.identity.SignupRider(c.Request.Context(), service.SignupRiderRequest{
		ClerkID:     req.ClerkID,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toSessionBody(session))
}

// SignupDriver handles POST /api/auth/signup/driver
func (h *AuthHandler) SignupDriver(c *gin.Context) {
	var req SignupDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.identity.SignupDriver(c.Request.Context(), service.SignupDriverRequest{
		ClerkID:       req.ClerkID,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PhoneNumber:   req.PhoneNumber,
		LicenseNumber: req.LicenseNumber,
		Vehicle: domain.Vehicle{
			Make:        req.Vehicle.Make,
			Model:       req.Vehicle.Model,
			Year:        req.Vehicle.Year,
			Color:       req.Vehicle.Color,
			PlateNumber: req.Vehicle.PlateNumber,
			Type:        domain.RideType(req.Vehicle.VehicleType),
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toSessionBody(session))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.identity.Login(c.Request.Context(), req.ClerkID, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSessionBody(session))
}
