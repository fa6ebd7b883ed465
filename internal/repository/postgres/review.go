package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"cabnet/internal/domain"
	"cabnet/internal/repository"
)

const reviewColumns = `id, ride_id, reviewer_role, reviewer_id, reviewee_role, reviewee_id,
	rating, comment, tags, is_anonymous, is_public, helpful_count, created_at`

// ReviewRepository is a PostgreSQL implementation of repository.ReviewRepository.
type ReviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new PostgreSQL review repository.
func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// partyTable maps a party to the table holding its rating aggregate.
func partyTable(p domain.Party) (string, error) {
	switch p.(type) {
	case domain.RiderParty:
		return "riders", nil
	case domain.DriverParty:
		return "drivers", nil
	}
	return "", fmt.Errorf("unsupported party %T", p)
}

// CreateAndRecompute inserts the review and rewrites the reviewee's
// aggregate while holding the reviewee row lock.
func (r *ReviewRepository) CreateAndRecompute(ctx context.Context, review *domain.Review) (domain.Rating, error) {
	var rating domain.Rating

	table, err := partyTable(review.Reviewee)
	if err != nil {
		return rating, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return rating, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedID string
	lockQuery := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, table)
	if err = tx.QueryRowContext(ctx, lockQuery, review.Reviewee.PartyID()).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repository.ErrNotFound
		}
		return rating, err
	}

	insert := `
		INSERT INTO reviews (id, ride_id, reviewer_role, reviewer_id, reviewee_role, reviewee_id,
			rating, comment, tags, is_anonymous, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, insert,
		review.ID,
		review.RideID,
		review.Reviewer.Role(), review.Reviewer.PartyID(),
		review.Reviewee.Role(), review.Reviewee.PartyID(),
		review.Rating,
		review.Comment,
		pq.Array(tagStrings(review.Tags)),
		review.IsAnonymous,
		review.IsPublic,
		review.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = repository.ErrDuplicate
		}
		return rating, err
	}

	aggregate := `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM reviews
		WHERE reviewee_role = $1 AND reviewee_id = $2 AND is_public
	`
	if err = tx.QueryRowContext(ctx, aggregate, review.Reviewee.Role(), review.Reviewee.PartyID()).
		Scan(&rating.Average, &rating.Count); err != nil {
		return rating, err
	}

	update := fmt.Sprintf(`UPDATE %s SET rating_average = $1, rating_count = $2 WHERE id = $3`, table)
	if _, err = tx.ExecContext(ctx, update, rating.Average, rating.Count, review.Reviewee.PartyID()); err != nil {
		return rating, err
	}

	if err = tx.Commit(); err != nil {
		return rating, err
	}
	return rating, nil
}

// ListForReviewee returns public reviews addressed to reviewee, newest first.
func (r *ReviewRepository) ListForReviewee(ctx context.Context, reviewee domain.Party, limit int) ([]*domain.Review, error) {
	if !validID(reviewee.PartyID()) {
		return nil, nil
	}
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE reviewee_role = $1 AND reviewee_id = $2 AND is_public
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, reviewee.Role(), reviewee.PartyID(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// ToggleHelpful flips identityID's helpful mark on the review.
func (r *ReviewRepository) ToggleHelpful(ctx context.Context, reviewID, identityID string) (count int, marked bool, err error) {
	if !validID(reviewID) {
		return 0, false, repository.ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.QueryRowContext(ctx, `SELECT helpful_count FROM reviews WHERE id = $1 FOR UPDATE`, reviewID).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repository.ErrNotFound
		}
		return 0, false, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM review_helpful WHERE review_id = $1 AND identity_id = $2`, reviewID, identityID)
	if err != nil {
		return 0, false, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	delta := -1
	if removed == 0 {
		if _, err = tx.ExecContext(ctx, `INSERT INTO review_helpful (review_id, identity_id) VALUES ($1, $2)`, reviewID, identityID); err != nil {
			return 0, false, err
		}
		delta = 1
		marked = true
	}

	if err = tx.QueryRowContext(ctx,
		`UPDATE reviews SET helpful_count = GREATEST(helpful_count + $1, 0) WHERE id = $2 RETURNING helpful_count`,
		delta, reviewID,
	).Scan(&count); err != nil {
		return 0, false, err
	}

	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return count, marked, nil
}

func scanReview(s scanner) (*domain.Review, error) {
	var review domain.Review
	var reviewerRole, reviewerID, revieweeRole, revieweeID string
	var tags []string

	err := s.Scan(
		&review.ID,
		&review.RideID,
		&reviewerRole, &reviewerID,
		&revieweeRole, &revieweeID,
		&review.Rating,
		&review.Comment,
		pq.Array(&tags),
		&review.IsAnonymous,
		&review.IsPublic,
		&review.HelpfulCount,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	var ok bool
	if review.Reviewer, ok = domain.NewParty(domain.ActorRole(reviewerRole), reviewerID); !ok {
		return nil, fmt.Errorf("review %s: unknown reviewer role %q", review.ID, reviewerRole)
	}
	if review.Reviewee, ok = domain.NewParty(domain.ActorRole(revieweeRole), revieweeID); !ok {
		return nil, fmt.Errorf("review %s: unknown reviewee role %q", review.ID, revieweeRole)
	}
	for _, t := range tags {
		review.Tags = append(review.Tags, domain.ReviewTag(t))
	}
	return &review, nil
}

func tagStrings(tags []domain.ReviewTag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}
