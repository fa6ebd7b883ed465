package service_test

import (
	"context"
	"errors"
	"testing"

	"cabnet/internal/domain"
	"cabnet/internal/logging"
	"cabnet/internal/service"
)

func newDriverFixture(status domain.DriverStatus) (*service.DriverService, *MockLocationStore, *MockDriverCache, *MockDriverRepository) {
	locations := NewMockLocationStore()
	cache := NewMockDriverCache()
	drivers := NewMockDriverRepository()
	drivers.AddDriver(&domain.Driver{
		ID:       "d1",
		Status:   status,
		IsActive: true,
		Location: domain.Location{Lat: 12.97, Lng: 77.59},
		Vehicle:  domain.Vehicle{Type: domain.RideTypeEconomy, Make: "Toyota"},
	})
	return service.NewDriverService(locations, cache, drivers, logging.Discard()), locations, cache, drivers
}

func TestDriverSetStatus_OnlineIndexesOfflineRemoves(t *testing.T) {
	ctx := context.Background()
	svc, locations, _, drivers := newDriverFixture(domain.DriverStatusOffline)

	if _, err := svc.SetStatus(ctx, "d1", domain.DriverStatusOnline); err != nil {
		t.Fatalf("online: %v", err)
	}
	if drivers.GetDriver("d1").Status != domain.DriverStatusOnline {
		t.Error("expected online in database")
	}
	if !locations.HasLocation("d1") {
		t.Error("online driver with a known position should be indexed")
	}

	if _, err := svc.SetStatus(ctx, "d1", domain.DriverStatusOffline); err != nil {
		t.Fatalf("offline: %v", err)
	}
	if locations.HasLocation("d1") {
		t.Error("offline driver should leave the geo index")
	}
}

func TestDriverSetStatus_Rules(t *testing.T) {
	testCases := []struct {
		name    string
		current domain.DriverStatus
		target  domain.DriverStatus
		kind    error
	}{
		{"cannot self-set busy", domain.DriverStatusOnline, domain.DriverStatusBusy, service.ErrValidation},
		{"cannot self-set suspended", domain.DriverStatusOnline, domain.DriverStatusSuspended, service.ErrValidation},
		{"suspended cannot go online", domain.DriverStatusSuspended, domain.DriverStatusOnline, service.ErrForbidden},
		{"busy cannot go offline", domain.DriverStatusBusy, domain.DriverStatusOffline, service.ErrConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _, drivers := newDriverFixture(tc.current)
			_, err := svc.SetStatus(context.Background(), "d1", tc.target)
			if !errors.Is(err, tc.kind) {
				t.Errorf("expected %v, got %v", tc.kind, err)
			}
			if drivers.GetDriver("d1").Status != tc.current {
				t.Error("status must be unchanged")
			}
		})
	}
}

func TestDriverUpdateLocation(t *testing.T) {
	ctx := context.Background()

	svc, locations, _, drivers := newDriverFixture(domain.DriverStatusOnline)
	loc := domain.Location{Lat: 13.0, Lng: 77.6, Address: "MG Road"}
	if _, err := svc.UpdateLocation(ctx, "d1", loc); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if drivers.GetDriver("d1").Location != loc {
		t.Error("location not stored")
	}
	if !locations.HasLocation("d1") {
		t.Error("online driver should be indexed")
	}

	offline, offLocations, _, _ := newDriverFixture(domain.DriverStatusOffline)
	if _, err := offline.UpdateLocation(ctx, "d1", loc); err != nil {
		t.Fatal(err)
	}
	if offLocations.HasLocation("d1") {
		t.Error("offline driver must not be indexed")
	}

	if _, err := svc.UpdateLocation(ctx, "d1", domain.Location{Lat: 95}); !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestDriverUpdateProfile(t *testing.T) {
	svc, _, cache, drivers := newDriverFixture(domain.DriverStatusOffline)
	name, year := "Ana", 2022

	got, err := svc.UpdateProfile(context.Background(), "d1", service.DriverProfileUpdate{FirstName: &name, VehicleYear: &year})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.FirstName != "Ana" || got.Vehicle.Year != 2022 || got.Vehicle.Make != "Toyota" {
		t.Errorf("unexpected driver %+v", got)
	}
	if drivers.GetDriver("d1").FirstName != "Ana" {
		t.Error("profile not stored")
	}
	if cache.Invalidations == 0 {
		t.Error("expected cache invalidation")
	}

	if _, err := svc.GetProfile(context.Background(), "ghost"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
