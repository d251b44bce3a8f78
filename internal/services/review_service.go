package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/repositories"
)

const reviewEventCreated = "review.created"

const (
	minReviewRating = 1
	maxReviewRating = 5
)

var (
	// ErrReviewInvalidInput indicates the submission failed validation.
	ErrReviewInvalidInput = errors.New("review service: invalid input")
	// ErrReviewProductNotFound indicates the reviewed product does not exist.
	ErrReviewProductNotFound = errors.New("review service: product not found")
	// ErrReviewUnavailable indicates the review backend cannot fulfil the request.
	ErrReviewUnavailable = errors.New("review service: review backend unavailable")
)

// ReviewServiceDeps bundles repositories, the text sanitizer, and optional
// event and logging hooks for review submissions.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Catalog     repositories.CatalogRepository
	Events      ReviewEventPublisher
	Sanitize    func(string) string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	catalog  repositories.CatalogRepository
	events   ReviewEventPublisher
	sanitize func(string) string
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewReviewService constructs a ReviewService after validating required
// dependencies.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("review service: catalog repository is required")
	}
	sanitize := deps.Sanitize
	if sanitize == nil {
		sanitize = func(value string) string { return value }
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	generator := deps.IDGenerator
	if generator == nil {
		generator = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &reviewService{
		reviews:  deps.Reviews,
		catalog:  deps.Catalog,
		events:   deps.Events,
		sanitize: sanitize,
		now:      func() time.Time { return clock().UTC() },
		newID:    generator,
		logger:   logger,
	}, nil
}

var _ ReviewService = (*reviewService)(nil)

// Submit validates the submission against the product, stores the review, and
// recomputes the product's rating summary from every review on record.
func (s *reviewService) Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error) {
	if s == nil || s.reviews == nil || s.catalog == nil {
		return Review{}, ErrReviewUnavailable
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Review{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < minReviewRating || cmd.Rating > maxReviewRating {
		return Review{}, fmt.Errorf("%w: rating must be between %d and %d", ErrReviewInvalidInput, minReviewRating, maxReviewRating)
	}

	if _, err := s.catalog.FindByID(ctx, productID); err != nil {
		if isRepoNotFound(err) {
			return Review{}, ErrReviewProductNotFound
		}
		return Review{}, s.translateRepoError(err)
	}

	review := domain.Review{
		ID:         s.newID(),
		ProductID:  productID,
		UserID:     trimStringPointer(cmd.UserID),
		Rating:     cmd.Rating,
		Comment:    s.sanitizePointer(cmd.Comment),
		AuthorName: s.sanitizePointer(cmd.AuthorName),
		CreatedAt:  s.now(),
	}

	stored, err := s.reviews.Insert(ctx, review)
	if err != nil {
		return Review{}, s.translateRepoError(err)
	}

	summary, err := s.recomputeRating(ctx, productID)
	if err != nil {
		return Review{}, err
	}

	s.publishReviewCreated(ctx, stored, summary)
	return stored, nil
}

// recomputeRating rescans every review for the product and writes the derived
// average and count back onto the product document.
func (s *reviewService) recomputeRating(ctx context.Context, productID string) (domain.RatingSummary, error) {
	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return domain.RatingSummary{}, s.translateRepoError(err)
	}
	if len(reviews) == 0 {
		return domain.RatingSummary{}, nil
	}
	var sum int
	for _, review := range reviews {
		sum += review.Rating
	}
	summary := domain.RatingSummary{
		Average: roundAmount(float64(sum) / float64(len(reviews))),
		Count:   len(reviews),
	}
	if err := s.catalog.UpdateRating(ctx, productID, summary, s.now()); err != nil {
		return domain.RatingSummary{}, s.translateRepoError(err)
	}
	return summary, nil
}

func (s *reviewService) publishReviewCreated(ctx context.Context, review domain.Review, summary domain.RatingSummary) {
	if s.events == nil {
		return
	}
	message := ReviewEventMessage{
		Type:          reviewEventCreated,
		ReviewID:      review.ID,
		ProductID:     review.ProductID,
		Rating:        review.Rating,
		RatingAverage: summary.Average,
		RatingCount:   summary.Count,
		OccurredAt:    s.now(),
	}
	if _, err := s.events.PublishReviewEvent(ctx, message); err != nil {
		s.logger(ctx, "review.event_publish_failed", map[string]any{
			"reviewId":  review.ID,
			"productId": review.ProductID,
			"error":     err.Error(),
		})
	}
}

// sanitizePointer strips markup from optional free text. Text that sanitises
// to nothing is stored as absent.
func (s *reviewService) sanitizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := strings.TrimSpace(s.sanitize(*value))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func (s *reviewService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrReviewProductNotFound
		case repoErr.IsUnavailable():
			return ErrReviewUnavailable
		}
	}
	return ErrReviewUnavailable
}
