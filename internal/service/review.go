package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"cabnet/internal/domain"
	"cabnet/internal/redis"
	"cabnet/internal/repository"
)

const (
	maxCommentLength = 500
	reviewListLimit  = 50
	minRating        = 1
	maxRating        = 5
)

// ReviewService records reviews and keeps party rating aggregates current.
type ReviewService struct {
	reviewRepo repository.ReviewRepository
	rideRepo   repository.RideRepository
	cacheStore redis.DriverCacheInterface
	logger     *slog.Logger
	now        func() time.Time
}

// NewReviewService creates a new ReviewService. cacheStore may be nil.
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	rideRepo repository.RideRepository,
	cacheStore redis.DriverCacheInterface,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviewRepo: reviewRepo,
		rideRepo:   rideRepo,
		cacheStore: cacheStore,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitReviewRequest contains the parameters of a review.
type SubmitReviewRequest struct {
	RideID      string
	Reviewer    domain.Identity
	Rating      int
	Comment     string
	Tags        []domain.ReviewTag
	IsAnonymous bool
}

// SubmitReview records the reviewer's rating of the other party of a
// completed ride and returns the reviewee's new aggregate.
func (s *ReviewService) SubmitReview(ctx context.Context, req SubmitReviewRequest) (*domain.Review, domain.Rating, error) {
	var rating domain.Rating

	if req.Rating < minRating || req.Rating > maxRating {
		return nil, rating, ErrInvalidRating
	}
	comment := strings.TrimSpace(req.Comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, rating, ErrCommentTooLong
	}
	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return nil, rating, err
	}

	if req.RideID == "" {
		return nil, rating, ErrInvalidRideID
	}
	ride, err := s.rideRepo.GetByID(ctx, req.RideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, rating, ErrRideNotFound
		}
		return nil, rating, upstream("load ride", err)
	}

	self, other, ok := ride.Counterpart(req.Reviewer.ID)
	if !ok || self.Role() != req.Reviewer.Role {
		return nil, rating, ErrNotRideParty
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, rating, ErrRideNotCompleted
	}

	review := &domain.Review{
		ID:          uuid.New().String(),
		RideID:      ride.ID,
		Reviewer:    self,
		Reviewee:    other,
		Rating:      req.Rating,
		Comment:     comment,
		Tags:        tags,
		IsAnonymous: req.IsAnonymous,
		IsPublic:    true,
		CreatedAt:   s.now().UTC(),
	}

	rating, err = s.reviewRepo.CreateAndRecompute(ctx, review)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, domain.Rating{}, ErrDuplicateReview
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.Rating{}, newError(ErrNotFound, "reviewee not found")
		}
		return nil, domain.Rating{}, upstream("create review", err)
	}

	if _, isDriver := other.(domain.DriverParty); isDriver && s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, other.PartyID())
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("ride_id", ride.ID),
		slog.String("reviewee_role", string(other.Role())),
		slog.Int("rating", req.Rating),
	)
	return review, rating, nil
}

// ListReviews returns public reviews of a rider or driver, newest first.
// Anonymous reviews come back without a reviewer.
func (s *ReviewService) ListReviews(ctx context.Context, role domain.ActorRole, id string) ([]*domain.Review, error) {
	reviewee, ok := domain.NewParty(role, id)
	if !ok || id == "" {
		return nil, newError(ErrValidation, "reviews can be listed for riders or drivers only")
	}

	reviews, err := s.reviewRepo.ListForReviewee(ctx, reviewee, reviewListLimit)
	if err != nil {
		return nil, upstream("list reviews", err)
	}
	for _, r := range reviews {
		if r.IsAnonymous {
			r.Reviewer = nil
		}
	}
	return reviews, nil
}

// ToggleHelpful flips the caller's helpful mark on a review.
func (s *ReviewService) ToggleHelpful(ctx context.Context, reviewID string, caller domain.Identity) (int, bool, error) {
	if reviewID == "" {
		return 0, false, newError(ErrValidation, "invalid review id")
	}

	count, marked, err := s.reviewRepo.ToggleHelpful(ctx, reviewID, caller.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, false, ErrReviewNotFound
		}
		return 0, false, upstream("toggle helpful", err)
	}
	return count, marked, nil
}

// normalizeTags validates tags and drops duplicates, keeping order.
func normalizeTags(tags []domain.ReviewTag) ([]domain.ReviewTag, error) {
	seen := make(map[domain.ReviewTag]bool, len(tags))
	out := make([]domain.ReviewTag, 0, len(tags))
	for _, t := range tags {
		t = domain.ReviewTag(strings.ToLower(strings.TrimSpace(string(t))))
		if !t.Valid() {
			return nil, ErrInvalidTag
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
