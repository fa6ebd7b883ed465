package repository

import (
	"context"

	"cabnet/internal/domain"
)

// ReviewRepository defines the persistence operations for reviews.
type ReviewRepository interface {
	// CreateAndRecompute inserts the review and recomputes the reviewee's
	// aggregate rating in one transaction, serialized per reviewee.
	// Returns ErrDuplicate when (ride, reviewer) already has a review, in
	// which case the aggregate is left untouched.
	CreateAndRecompute(ctx context.Context, review *domain.Review) (domain.Rating, error)

	// ListForReviewee returns public reviews addressed to reviewee, newest first.
	ListForReviewee(ctx context.Context, reviewee domain.Party, limit int) ([]*domain.Review, error)

	// ToggleHelpful marks or unmarks the review as helpful for identityID
	// and returns the new helpful count.
	ToggleHelpful(ctx context.Context, reviewID, identityID string) (count int, marked bool, err error)
}
