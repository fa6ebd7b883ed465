package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"cabnet/internal/domain"
	"cabnet/internal/logging"
	"cabnet/internal/service"
)

func newReviewFixture() (*service.ReviewService, *MockReviewRepository, *MockRideRepository) {
	reviews := NewMockReviewRepository()
	rides := NewMockRideRepository()
	rides.AddRide(&domain.Ride{ID: "ride-1", RiderID: "R", DriverID: "D", Status: domain.RideStatusCompleted})
	rides.AddRide(&domain.Ride{ID: "ride-2", RiderID: "R", DriverID: "D", Status: domain.RideStatusStarted})
	return service.NewReviewService(reviews, rides, NewMockDriverCache(), logging.Discard()), reviews, rides
}

var (
	riderR  = domain.Identity{ID: "R", Role: domain.RoleRider}
	driverD = domain.Identity{ID: "D", Role: domain.RoleDriver}
)

func TestSubmitReview_RiderRatesDriver(t *testing.T) {
	svc, reviews, _ := newReviewFixture()

	review, rating, err := svc.SubmitReview(context.Background(), service.SubmitReviewRequest{
		RideID: "ride-1", Reviewer: riderR, Rating: 5, Tags: []domain.ReviewTag{"clean", "Clean", "punctual"},
	})
	if err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	if review.Reviewee != (domain.DriverParty{ID: "D"}) {
		t.Errorf("expected driver reviewee, got %#v", review.Reviewee)
	}
	if len(review.Tags) != 2 {
		t.Errorf("expected duplicate tags dropped, got %v", review.Tags)
	}
	if rating.Average != 5 || rating.Count != 1 {
		t.Errorf("unexpected aggregate %+v", rating)
	}
	if reviews.Rating(domain.DriverParty{ID: "D"}).Count != 1 {
		t.Error("aggregate not stored")
	}
}

func TestSubmitReview_DuplicateLeavesAggregate(t *testing.T) {
	ctx := context.Background()
	svc, reviews, _ := newReviewFixture()

	if _, _, err := svc.SubmitReview(ctx, service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 4}); err != nil {
		t.Fatal(err)
	}
	_, _, err := svc.SubmitReview(ctx, service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 1})
	if !errors.Is(err, service.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := reviews.Rating(domain.DriverParty{ID: "D"}); got.Count != 1 || got.Average != 4 {
		t.Errorf("aggregate changed by duplicate: %+v", got)
	}

	// The driver may still review the rider.
	_, rating, err := svc.SubmitReview(ctx, service.SubmitReviewRequest{RideID: "ride-1", Reviewer: driverD, Rating: 3})
	if err != nil {
		t.Fatalf("driver review: %v", err)
	}
	if rating.Count != 1 || rating.Average != 3 {
		t.Errorf("unexpected rider aggregate %+v", rating)
	}
}

func TestSubmitReview_Rules(t *testing.T) {
	testCases := []struct {
		name string
		req  service.SubmitReviewRequest
		kind error
	}{
		{"rating too low", service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 0}, service.ErrValidation},
		{"rating too high", service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 6}, service.ErrValidation},
		{"comment too long", service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 3, Comment: strings.Repeat("x", 501)}, service.ErrValidation},
		{"unknown tag", service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 3, Tags: []domain.ReviewTag{"fast"}}, service.ErrValidation},
		{"ride not completed", service.SubmitReviewRequest{RideID: "ride-2", Reviewer: riderR, Rating: 3}, service.ErrValidation},
		{"not a party", service.SubmitReviewRequest{RideID: "ride-1", Reviewer: domain.Identity{ID: "X", Role: domain.RoleRider}, Rating: 3}, service.ErrForbidden},
		{"role mismatch", service.SubmitReviewRequest{RideID: "ride-1", Reviewer: domain.Identity{ID: "R", Role: domain.RoleDriver}, Rating: 3}, service.ErrForbidden},
		{"missing ride", service.SubmitReviewRequest{RideID: "nope", Reviewer: riderR, Rating: 3}, service.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newReviewFixture()
			_, _, err := svc.SubmitReview(context.Background(), tc.req)
			if !errors.Is(err, tc.kind) {
				t.Errorf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestSubmitReview_ConcurrentAggregateIsExact(t *testing.T) {
	svc, reviews, rides := newReviewFixture()

	const n = 20
	for i := 0; i < n; i++ {
		rides.AddRide(&domain.Ride{ID: fmt.Sprintf("trip-%d", i), RiderID: fmt.Sprintf("R%d", i), DriverID: "D", Status: domain.RideStatusCompleted})
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.SubmitReview(context.Background(), service.SubmitReviewRequest{
				RideID:   fmt.Sprintf("trip-%d", i),
				Reviewer: domain.Identity{ID: fmt.Sprintf("R%d", i), Role: domain.RoleRider},
				Rating:   i%5 + 1,
			})
			if err != nil {
				t.Errorf("review %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got := reviews.Rating(domain.DriverParty{ID: "D"})
	if got.Count != n || got.Average != 3 {
		t.Errorf("expected count %d average 3, got %+v", n, got)
	}
}

func TestListReviews_HidesAnonymousReviewer(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newReviewFixture()
	if _, _, err := svc.SubmitReview(ctx, service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 4, IsAnonymous: true}); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListReviews(ctx, domain.RoleDriver, "D")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 review, got %d (%v)", len(list), err)
	}
	if list[0].Reviewer != nil {
		t.Error("anonymous reviewer must be hidden")
	}

	if _, err := svc.ListReviews(ctx, domain.RoleSystem, "x"); !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestToggleHelpful(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newReviewFixture()
	review, _, err := svc.SubmitReview(ctx, service.SubmitReviewRequest{RideID: "ride-1", Reviewer: riderR, Rating: 5})
	if err != nil {
		t.Fatal(err)
	}

	count, marked, err := svc.ToggleHelpful(ctx, review.ID, driverD)
	if err != nil || count != 1 || !marked {
		t.Fatalf("first toggle: count=%d marked=%v err=%v", count, marked, err)
	}
	count, marked, err = svc.ToggleHelpful(ctx, review.ID, driverD)
	if err != nil || count != 0 || marked {
		t.Fatalf("second toggle: count=%d marked=%v err=%v", count, marked, err)
	}
	if _, _, err := svc.ToggleHelpful(ctx, "missing", driverD); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
