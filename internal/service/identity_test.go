package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cabnet/internal/auth"
	"cabnet/internal/domain"
	"cabnet/internal/logging"
	"cabnet/internal/service"
)

func newIdentityFixture() (*service.IdentityService, *auth.Manager, *MockRiderRepository, *MockDriverRepository) {
	tokens := auth.NewManager("test-secret", time.Hour)
	riders := NewMockRiderRepository()
	drivers := NewMockDriverRepository()
	return service.NewIdentityService(tokens, riders, drivers, logging.Discard()), tokens, riders, drivers
}

func TestSignupRider_IssuesVerifiableToken(t *testing.T) {
	ctx := context.Background()
	svc, _, riders, _ := newIdentityFixture()

	session, err := svc.SignupRider(ctx, service.SignupRiderRequest{
		ClerkID: "clerk_1", Email: " Ana@Example.com ", FirstName: "Ana", LastName: "Lima",
	})
	if err != nil {
		t.Fatalf("SignupRider: %v", err)
	}
	if session.Rider == nil || session.Rider.Email != "ana@example.com" {
		t.Errorf("expected lowercased email, got %+v", session.Rider)
	}
	if session.Rider.Preferences.RideType != domain.RideTypeEconomy {
		t.Errorf("expected default economy preference, got %s", session.Rider.Preferences.RideType)
	}

	id, err := svc.Verify(ctx, session.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Role != domain.RoleRider || id.ID != session.Rider.ID {
		t.Errorf("unexpected identity %+v", id)
	}
	if _, err := riders.GetByClerkID(ctx, "clerk_1"); err != nil {
		t.Error("rider not stored")
	}
}

func TestSignup_DuplicateCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newIdentityFixture()

	if _, err := svc.SignupRider(ctx, service.SignupRiderRequest{ClerkID: "c1", Email: "a@example.com"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.SignupRider(ctx, service.SignupRiderRequest{ClerkID: "c2", Email: "a@example.com"})
	if !errors.Is(err, service.ErrConflict) {
		t.Errorf("same email: expected ErrConflict, got %v", err)
	}

	_, err = svc.SignupDriver(ctx, service.SignupDriverRequest{
		ClerkID: "c1", Email: "b@example.com", LicenseNumber: "L1",
		Vehicle: domain.Vehicle{Type: domain.RideTypeEconomy, PlateNumber: "P1"},
	})
	if !errors.Is(err, service.ErrConflict) {
		t.Errorf("clerk id used by a rider: expected ErrConflict, got %v", err)
	}
}

func TestSignupDriver_StartsOfflineUnverified(t *testing.T) {
	svc, _, _, drivers := newIdentityFixture()

	session, err := svc.SignupDriver(context.Background(), service.SignupDriverRequest{
		ClerkID: "clerk_d", Email: "d@example.com", LicenseNumber: "DL-1",
		Vehicle: domain.Vehicle{Type: domain.RideTypeComfort, PlateNumber: "KA01"},
	})
	if err != nil {
		t.Fatalf("SignupDriver: %v", err)
	}
	stored := drivers.GetDriver(session.Driver.ID)
	if stored.Status != domain.DriverStatusOffline || stored.IsVerified || !stored.IsActive {
		t.Errorf("unexpected initial driver state %+v", stored)
	}
	if session.Identity.Role != domain.RoleDriver {
		t.Errorf("expected driver identity, got %s", session.Identity.Role)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _, _, _ := newIdentityFixture()
	ctx := context.Background()

	if _, err := svc.SignupRider(ctx, service.SignupRiderRequest{Email: "a@example.com"}); !errors.Is(err, service.ErrValidation) {
		t.Errorf("missing clerk id: expected ErrValidation, got %v", err)
	}
	if _, err := svc.SignupRider(ctx, service.SignupRiderRequest{ClerkID: "c", Email: "not-an-email"}); !errors.Is(err, service.ErrValidation) {
		t.Errorf("bad email: expected ErrValidation, got %v", err)
	}
	if _, err := svc.SignupDriver(ctx, service.SignupDriverRequest{ClerkID: "c", Email: "d@example.com", LicenseNumber: "L", Vehicle: domain.Vehicle{PlateNumber: "P", Type: "tuk-tuk"}}); !errors.Is(err, service.ErrValidation) {
		t.Errorf("bad vehicle type: expected ErrValidation, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, riders, drivers := newIdentityFixture()
	riders.AddRider(&domain.Rider{ID: "r1", ClerkID: "clerk_r", Email: "r@example.com", IsActive: true})
	drivers.AddDriver(&domain.Driver{ID: "d1", ClerkID: "clerk_d", Email: "d@example.com"})

	s, err := svc.Login(ctx, "", "R@example.com")
	if err != nil || s.Identity.ID != "r1" {
		t.Fatalf("login by email: %+v %v", s, err)
	}
	s, err = svc.Login(ctx, "clerk_d", "")
	if err != nil || s.Identity.ID != "d1" || s.Identity.Role != domain.RoleDriver {
		t.Fatalf("login by clerk id: %+v %v", s, err)
	}
	if _, err := svc.Login(ctx, "nobody", ""); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Login(ctx, "", ""); !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	svc, tokens, riders, drivers := newIdentityFixture()
	riders.AddRider(&domain.Rider{ID: "r1", ClerkID: "shared"})
	drivers.AddDriver(&domain.Driver{ID: "d1", ClerkID: "shared"})
	drivers.AddDriver(&domain.Driver{ID: "d2", ClerkID: "driver-only"})

	shared, _, _ := tokens.Issue("shared")
	if id, err := svc.Verify(ctx, shared); err != nil || id.Role != domain.RoleRider {
		t.Errorf("riders resolve before drivers: %+v %v", id, err)
	}

	driverToken, _, _ := tokens.Issue("driver-only")
	if id, err := svc.Verify(ctx, driverToken); err != nil || id.ID != "d2" {
		t.Errorf("driver token: %+v %v", id, err)
	}

	system, _ := tokens.IssueSystem("billing", time.Minute)
	if id, err := svc.Verify(ctx, system); err != nil || id.Role != domain.RoleSystem || id.ID != "billing" {
		t.Errorf("system token: %+v %v", id, err)
	}

	unknown, _, _ := tokens.Issue("ghost")
	if _, err := svc.Verify(ctx, unknown); !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("unknown identity: expected ErrAuthentication, got %v", err)
	}

	forged, _, _ := auth.NewManager("other-secret", time.Hour).Issue("shared")
	if _, err := svc.Verify(ctx, forged); !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("forged token: expected ErrAuthentication, got %v", err)
	}
}

func TestUpdateRider(t *testing.T) {
	svc, _, riders, _ := newIdentityFixture()
	riders.AddRider(&domain.Rider{ID: "r1", FirstName: "Old", Preferences: domain.RiderPreferences{RideType: domain.RideTypeEconomy}})

	premium := domain.RideTypePremium
	name := "New"
	got, err := svc.UpdateRider(context.Background(), "r1", service.RiderProfileUpdate{FirstName: &name, RideType: &premium})
	if err != nil {
		t.Fatalf("UpdateRider: %v", err)
	}
	if got.FirstName != "New" || got.Preferences.RideType != domain.RideTypePremium {
		t.Errorf("unexpected rider %+v", got)
	}

	bad := domain.RideType("rocket")
	if _, err := svc.UpdateRider(context.Background(), "r1", service.RiderProfileUpdate{RideType: &bad}); !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
