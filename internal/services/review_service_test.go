package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/solebound/api/internal/domain"
)

func reviewFixture(t *testing.T, deps ReviewServiceDeps) ReviewService {
	t.Helper()
	if deps.Reviews == nil {
		deps.Reviews = &stubReviewRepository{}
	}
	if deps.Catalog == nil {
		deps.Catalog = &stubCatalogRepository{product: domain.Product{ID: "prod-1", Name: "AirFlex Runner"}}
	}
	svc, err := NewReviewService(deps)
	if err != nil {
		t.Fatalf("NewReviewService: %v", err)
	}
	return svc
}

func TestReviewService_Submit_StoresReviewAndRecomputesRating(t *testing.T) {
	now := time.Date(2025, time.May, 5, 8, 0, 0, 0, time.UTC)
	reviews := &stubReviewRepository{
		listResult: []domain.Review{
			{ID: "rev-1", ProductID: "prod-1", Rating: 5},
			{ID: "rev-2", ProductID: "prod-1", Rating: 4},
			{ID: "rev-3", ProductID: "prod-1", Rating: 4},
		},
	}
	catalog := &stubCatalogRepository{product: domain.Product{ID: "prod-1"}}
	events := &stubReviewEventPublisher{}

	svc := reviewFixture(t, ReviewServiceDeps{
		Reviews:     reviews,
		Catalog:     catalog,
		Events:      events,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "rev-3" },
	})

	stored, err := svc.Submit(context.Background(), SubmitReviewCommand{
		ProductID:  "prod-1",
		Rating:     4,
		Comment:    strPtr("Great support on long runs."),
		AuthorName: strPtr("Jamie"),
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if stored.ID != "rev-3" {
		t.Fatalf("unexpected review id %q", stored.ID)
	}
	if !stored.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created at %v", stored.CreatedAt)
	}

	if len(reviews.inserted) != 1 {
		t.Fatalf("expected one insert got %d", len(reviews.inserted))
	}
	if len(catalog.ratingUpdates) != 1 {
		t.Fatalf("expected one rating update got %d", len(catalog.ratingUpdates))
	}
	update := catalog.ratingUpdates[0]
	if update.productID != "prod-1" {
		t.Fatalf("rating written to wrong product %q", update.productID)
	}
	if update.rating.Average != 4.33 || update.rating.Count != 3 {
		t.Fatalf("expected average 4.33 over 3 reviews, got %+v", update.rating)
	}

	if len(events.messages) != 1 {
		t.Fatalf("expected one published event got %d", len(events.messages))
	}
	if events.messages[0].Type != "review.created" || events.messages[0].RatingCount != 3 {
		t.Fatalf("unexpected event %+v", events.messages[0])
	}
}

func TestReviewService_Submit_RatingFollowsEachNewReview(t *testing.T) {
	reviews := &stubReviewRepository{
		listResult: []domain.Review{
			{ID: "rev-1", ProductID: "prod-1", Rating: 5},
			{ID: "rev-2", ProductID: "prod-1", Rating: 3},
			{ID: "rev-3", ProductID: "prod-1", Rating: 4},
		},
	}
	catalog := &stubCatalogRepository{product: domain.Product{ID: "prod-1"}}
	svc := reviewFixture(t, ReviewServiceDeps{Reviews: reviews, Catalog: catalog})

	if _, err := svc.Submit(context.Background(), SubmitReviewCommand{ProductID: "prod-1", Rating: 4}); err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	if len(catalog.ratingUpdates) != 1 {
		t.Fatalf("expected one rating update got %d", len(catalog.ratingUpdates))
	}
	if got := catalog.ratingUpdates[0].rating; got.Average != 4 || got.Count != 3 {
		t.Fatalf("expected {4.0 3} after three reviews, got %+v", got)
	}

	reviews.listResult = append(reviews.listResult, domain.Review{ID: "rev-4", ProductID: "prod-1", Rating: 2})
	if _, err := svc.Submit(context.Background(), SubmitReviewCommand{ProductID: "prod-1", Rating: 2}); err != nil {
		t.Fatalf("second Submit returned error: %v", err)
	}
	if len(catalog.ratingUpdates) != 2 {
		t.Fatalf("expected two rating updates got %d", len(catalog.ratingUpdates))
	}
	if got := catalog.ratingUpdates[1].rating; got.Average != 3.5 || got.Count != 4 {
		t.Fatalf("expected {3.5 4} after the fourth review, got %+v", got)
	}
}

func TestReviewService_Submit_SanitizesFreeText(t *testing.T) {
	reviews := &stubReviewRepository{listResult: []domain.Review{{Rating: 5}}}
	svc := reviewFixture(t, ReviewServiceDeps{
		Reviews: reviews,
		Sanitize: func(value string) string {
			if value == "<b>Nice</b>" {
				return "Nice"
			}
			return ""
		},
	})

	stored, err := svc.Submit(context.Background(), SubmitReviewCommand{
		ProductID:  "prod-1",
		Rating:     5,
		Comment:    strPtr("<b>Nice</b>"),
		AuthorName: strPtr("<script>alert(1)</script>"),
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if stored.Comment == nil || *stored.Comment != "Nice" {
		t.Fatalf("expected sanitised comment, got %v", stored.Comment)
	}
	if stored.AuthorName != nil {
		t.Fatalf("text that sanitises to nothing must be dropped, got %v", stored.AuthorName)
	}
}

func TestReviewService_Submit_RatingBounds(t *testing.T) {
	svc := reviewFixture(t, ReviewServiceDeps{})

	for _, rating := range []int{0, -1, 6} {
		if _, err := svc.Submit(context.Background(), SubmitReviewCommand{ProductID: "prod-1", Rating: rating}); !errors.Is(err, ErrReviewInvalidInput) {
			t.Fatalf("rating %d: expected ErrReviewInvalidInput got %v", rating, err)
		}
	}
}

func TestReviewService_Submit_UnknownProduct(t *testing.T) {
	svc := reviewFixture(t, ReviewServiceDeps{
		Catalog: &stubCatalogRepository{findErr: &stubRepoError{notFound: true}},
	})

	if _, err := svc.Submit(context.Background(), SubmitReviewCommand{ProductID: "prod-x", Rating: 4}); !errors.Is(err, ErrReviewProductNotFound) {
		t.Fatalf("expected ErrReviewProductNotFound got %v", err)
	}
}

func TestReviewService_Submit_RatingWriteFailureSurfaces(t *testing.T) {
	reviews := &stubReviewRepository{listResult: []domain.Review{{Rating: 4}}}
	catalog := &stubCatalogRepository{
		product:         domain.Product{ID: "prod-1"},
		updateRatingErr: &stubRepoError{unavailable: true},
	}
	svc := reviewFixture(t, ReviewServiceDeps{Reviews: reviews, Catalog: catalog})

	if _, err := svc.Submit(context.Background(), SubmitReviewCommand{ProductID: "prod-1", Rating: 4}); !errors.Is(err, ErrReviewUnavailable) {
		t.Fatalf("expected ErrReviewUnavailable got %v", err)
	}
}

type stubReviewRepository struct {
	inserted   []domain.Review
	insertErr  error
	listResult []domain.Review
	listErr    error
}

func (s *stubReviewRepository) Insert(_ context.Context, review domain.Review) (domain.Review, error) {
	if s.insertErr != nil {
		return domain.Review{}, s.insertErr
	}
	s.inserted = append(s.inserted, review)
	return review, nil
}

func (s *stubReviewRepository) ListByProduct(_ context.Context, productID string) ([]domain.Review, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listResult, nil
}

type stubReviewEventPublisher struct {
	messages []ReviewEventMessage
	err      error
}

func (s *stubReviewEventPublisher) PublishReviewEvent(_ context.Context, message ReviewEventMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, message)
	return "msg-1", nil
}
