package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
	"cabnet/internal/service"
)

// ReviewService records and lists reviews.
type ReviewService interface {
	SubmitReview(ctx context.Context, req service.SubmitReviewRequest) (*domain.Review, domain.Rating, error)
	ListReviews(ctx context.Context, role domain.ActorRole, id string) ([]*domain.Review, error)
	ToggleHelpful(ctx context.Context, reviewID string, caller domain.Identity) (int, bool, error)
}

// ReviewHandler handles HTTP requests for reviews.
type ReviewHandler struct {
	reviews ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviews ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// CreateReviewRequest is the HTTP request body for a review.
type CreateReviewRequest struct {
	RideID      string   `json:"rideId" binding:"required"`
	Rating      int      `json:"rating" binding:"required,min=1,max=5"`
	Comment     string   `json:"comment" binding:"max=500"`
	Tags        []string `json:"tags"`
	IsAnonymous bool     `json:"isAnonymous"`
}

// Create handles POST /api/reviews
func (h *ReviewHandler) Create(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tags := make([]domain.ReviewTag, 0, len(req.Tags))
	for _, t := range req.Tags {
		tags = append(tags, domain.ReviewTag(t))
	}

	review, rating, err := h.reviews.SubmitReview(c.Request.Context(), service.SubmitReviewRequest{
		RideID:      req.RideID,
		Reviewer:    caller,
		Rating:      req.Rating,
		Comment:     req.Comment,
		Tags:        tags,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, gin.H{
		"review": toReviewResponse(review),
		"rating": ratingResponse{Average: rating.Average, Count: rating.Count},
	})
}

// List handles GET /api/reviews/:model/:id where model is "user" or "driver".
func (h *ReviewHandler) List(c *gin.Context) {
	role := domain.ActorRole(c.Param("model"))
	if role == "user" {
		role = domain.RoleRider
	}

	reviews, err := h.reviews.ListReviews(c.Request.Context(), role, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]reviewResponse, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, toReviewResponse(r))
	}
	respondJSON(c, http.StatusOK, gin.H{"reviews": out})
}

// ToggleHelpful handles PUT /api/reviews/:id/helpful
func (h *ReviewHandler) ToggleHelpful(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	count, marked, err := h.reviews.ToggleHelpful(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"helpfulCount": count, "marked": marked})
}
