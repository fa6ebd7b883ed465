package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"cabnet/internal/auth"
	"cabnet/internal/domain"
	"cabnet/internal/repository"
)

// IdentityService registers riders and drivers, issues tokens and
// resolves tokens back to the caller's identity.
type IdentityService struct {
	tokens     *auth.Manager
	riderRepo  repository.RiderRepository
	driverRepo repository.DriverRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(
	tokens *auth.Manager,
	riderRepo repository.RiderRepository,
	driverRepo repository.DriverRepository,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		tokens:     tokens,
		riderRepo:  riderRepo,
		driverRepo: driverRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// Session is the result of a signup or login.
type Session struct {
	Identity  domain.Identity
	Token     string
	ExpiresAt time.Time
	Rider     *domain.Rider
	Driver    *domain.Driver
}

// SignupRiderRequest contains the parameters of a rider signup.
type SignupRiderRequest struct {
	ClerkID     string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	Preferences domain.RiderPreferences
}

// SignupRider registers a rider and issues a token.
func (s *IdentityService) SignupRider(ctx context.Context, req SignupRiderRequest) (*Session, error) {
	email, err := normalizeCredentials(req.ClerkID, req.Email)
	if err != nil {
		return nil, err
	}
	if req.Preferences.RideType == "" {
		req.Preferences.RideType = domain.RideTypeEconomy
	}
	if !req.Preferences.RideType.Valid() {
		return nil, ErrInvalidRideType
	}
	if req.Preferences.PaymentMethod == "" {
		req.Preferences.PaymentMethod = domain.PaymentMethodCard
	}

	if err := s.ensureUnregistered(ctx, req.ClerkID, email); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rider := &domain.Rider{
		ID:          uuid.New().String(),
		ClerkID:     req.ClerkID,
		Email:       email,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		PhoneNumber: req.PhoneNumber,
		Preferences: req.Preferences,
		IsActive:    true,
		LastActive:  now,
		CreatedAt:   now,
	}
	if err := s.riderRepo.Create(ctx, rider); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRegistered
		}
		return nil, upstream("create rider", err)
	}

	s.logger.InfoContext(ctx, "rider registered", slog.String("rider_id", rider.ID))
	return s.session(domain.Identity{ID: rider.ID, Role: domain.RoleRider}, rider.ClerkID, rider, nil)
}

// SignupDriverRequest contains the parameters of a driver signup.
type SignupDriverRequest struct {
	ClerkID       string
	Email         string
	FirstName     string
	LastName      string
	PhoneNumber   string
	LicenseNumber string
	Vehicle       domain.Vehicle
}

// SignupDriver registers an unverified, offline driver and issues a token.
func (s *IdentityService) SignupDriver(ctx context.Context, req SignupDriverRequest) (*Session, error) {
	email, err := normalizeCredentials(req.ClerkID, req.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.LicenseNumber) == "" || strings.TrimSpace(req.Vehicle.PlateNumber) == "" {
		return nil, newError(ErrValidation, "license number and plate number are required")
	}
	if !req.Vehicle.Type.Valid() {
		return nil, ErrInvalidRideType
	}

	if err := s.ensureUnregistered(ctx, req.ClerkID, email); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	driver := &domain.Driver{
		ID:            uuid.New().String(),
		ClerkID:       req.ClerkID,
		Email:         email,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		PhoneNumber:   req.PhoneNumber,
		LicenseNumber: req.LicenseNumber,
		Vehicle:       req.Vehicle,
		Status:        domain.DriverStatusOffline,
		IsActive:      true,
		LastActive:    now,
		CreatedAt:     now,
	}
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRegistered
		}
		return nil, upstream("create driver", err)
	}

	s.logger.InfoContext(ctx, "driver registered", slog.String("driver_id", driver.ID))
	return s.session(domain.Identity{ID: driver.ID, Role: domain.RoleDriver}, driver.ClerkID, nil, driver)
}

// Login issues a token for an existing rider or driver, looked up by
// clerk id when given and by email otherwise.
func (s *IdentityService) Login(ctx context.Context, clerkID, email string) (*Session, error) {
	clerkID = strings.TrimSpace(clerkID)
	email = strings.ToLower(strings.TrimSpace(email))
	if clerkID == "" && email == "" {
		return nil, ErrMissingCredential
	}

	rider, err := lookup(ctx, clerkID, email, s.riderRepo.GetByClerkID, s.riderRepo.GetByEmail)
	if err != nil {
		return nil, upstream("load rider", err)
	}
	if rider != nil {
		return s.session(domain.Identity{ID: rider.ID, Role: domain.RoleRider}, rider.ClerkID, rider, nil)
	}

	driver, err := lookup(ctx, clerkID, email, s.driverRepo.GetByClerkID, s.driverRepo.GetByEmail)
	if err != nil {
		return nil, upstream("load driver", err)
	}
	if driver != nil {
		return s.session(domain.Identity{ID: driver.ID, Role: domain.RoleDriver}, driver.ClerkID, nil, driver)
	}
	return nil, ErrIdentityNotFound
}

// Verify resolves a bearer token to the caller. Riders are matched before
// drivers; system tokens resolve to their subject.
func (s *IdentityService) Verify(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	if claims.System {
		return domain.Identity{ID: claims.Subject, Role: domain.RoleSystem}, nil
	}

	rider, err := s.riderRepo.GetByClerkID(ctx, claims.ClerkID)
	switch {
	case err == nil:
		return domain.Identity{ID: rider.ID, Role: domain.RoleRider}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Identity{}, upstream("resolve rider", err)
	}

	driver, err := s.driverRepo.GetByClerkID(ctx, claims.ClerkID)
	switch {
	case err == nil:
		return domain.Identity{ID: driver.ID, Role: domain.RoleDriver}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Identity{}, upstream("resolve driver", err)
	}
	return domain.Identity{}, ErrUnknownIdentity
}

// GetRider returns the rider profile.
func (s *IdentityService) GetRider(ctx context.Context, riderID string) (*domain.Rider, error) {
	rider, err := s.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRiderNotFound
		}
		return nil, upstream("load rider", err)
	}
	return rider, nil
}

// RiderProfileUpdate holds the editable rider fields. Nil fields are kept.
type RiderProfileUpdate struct {
	FirstName     *string
	LastName      *string
	PhoneNumber   *string
	RideType      *domain.RideType
	PaymentMethod *domain.PaymentMethod
}

// UpdateRider applies the non-nil fields of update.
func (s *IdentityService) UpdateRider(ctx context.Context, riderID string, update RiderProfileUpdate) (*domain.Rider, error) {
	if update.RideType != nil && !update.RideType.Valid() {
		return nil, ErrInvalidRideType
	}

	rider, err := s.GetRider(ctx, riderID)
	if err != nil {
		return nil, err
	}

	assign(&rider.FirstName, update.FirstName)
	assign(&rider.LastName, update.LastName)
	assign(&rider.PhoneNumber, update.PhoneNumber)
	if update.RideType != nil {
		rider.Preferences.RideType = *update.RideType
	}
	if update.PaymentMethod != nil {
		rider.Preferences.PaymentMethod = *update.PaymentMethod
	}

	if err := s.riderRepo.UpdateProfile(ctx, rider); err != nil {
		return nil, upstream("update rider", err)
	}
	return rider, nil
}

// ensureUnregistered rejects credentials already used by a rider or driver.
func (s *IdentityService) ensureUnregistered(ctx context.Context, clerkID, email string) error {
	rider, err := lookupEither(ctx, clerkID, email, s.riderRepo.GetByClerkID, s.riderRepo.GetByEmail)
	if err != nil {
		return upstream("check rider", err)
	}
	driver, err := lookupEither(ctx, clerkID, email, s.driverRepo.GetByClerkID, s.driverRepo.GetByEmail)
	if err != nil {
		return upstream("check driver", err)
	}
	if rider != nil || driver != nil {
		return ErrAlreadyRegistered
	}
	return nil
}

func (s *IdentityService) session(id domain.Identity, clerkID string, rider *domain.Rider, driver *domain.Driver) (*Session, error) {
	token, exp, err := s.tokens.Issue(clerkID)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: id, Token: token, ExpiresAt: exp, Rider: rider, Driver: driver}, nil
}

func normalizeCredentials(clerkID, email string) (string, error) {
	if strings.TrimSpace(clerkID) == "" {
		return "", ErrMissingCredential
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// lookup finds by clerk id when given, else by email. A miss is (nil, nil).
func lookup[T any](ctx context.Context, clerkID, email string, byClerk, byEmail func(context.Context, string) (*T, error)) (*T, error) {
	var (
		v   *T
		err error
	)
	if clerkID != "" {
		v, err = byClerk(ctx, clerkID)
	} else {
		v, err = byEmail(ctx, email)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// lookupEither finds by clerk id, then by email. A miss is (nil, nil).
func lookupEither[T any](ctx context.Context, clerkID, email string, byClerk, byEmail func(context.Context, string) (*T, error)) (*T, error) {
	v, err := lookup(ctx, clerkID, "", byClerk, byEmail)
	if v != nil || err != nil {
		return v, err
	}
	return lookup(ctx, "", email, byClerk, byEmail)
}
