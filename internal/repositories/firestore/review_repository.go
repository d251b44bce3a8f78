package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/solebound/api/internal/domain"
	pfirestore "github.com/solebound/api/internal/platform/firestore"
	"github.com/solebound/api/internal/repositories"
)

const reviewCollection = "reviews"

// ReviewRepository persists product reviews in Firestore.
type ReviewRepository struct {
	base *pfirestore.BaseRepository[reviewDocument]
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{
		base: pfirestore.NewBaseRepository[reviewDocument](provider, reviewCollection, nil, nil),
	}, nil
}

// Insert stores the review under its identifier and returns the persisted value.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	id := strings.TrimSpace(review.ID)
	if id == "" {
		return domain.Review{}, errors.New("review repository: review id is required")
	}
	if strings.TrimSpace(review.ProductID) == "" {
		return domain.Review{}, errors.New("review repository: product id is required")
	}

	if _, err := r.base.Set(ctx, id, newReviewDocument(review)); err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// ListByProduct returns every review for the product, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("review repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, errors.New("review repository: product id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("productId", "==", id).
			OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	reviews := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		reviews = append(reviews, doc.Data.toDomain(doc.ID))
	}
	return reviews, nil
}

func newReviewDocument(review domain.Review) reviewDocument {
	return reviewDocument{
		ProductID:  strings.TrimSpace(review.ProductID),
		UserID:     review.UserID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		AuthorName: review.AuthorName,
		CreatedAt:  review.CreatedAt.UTC(),
	}
}

type reviewDocument struct {
	ProductID  string    `firestore:"productId"`
	UserID     *string   `firestore:"userId,omitempty"`
	Rating     int       `firestore:"rating"`
	Comment    *string   `firestore:"comment,omitempty"`
	AuthorName *string   `firestore:"authorName,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func (d reviewDocument) toDomain(id string) domain.Review {
	return domain.Review{
		ID:         id,
		ProductID:  d.ProductID,
		UserID:     d.UserID,
		Rating:     d.Rating,
		Comment:    d.Comment,
		AuthorName: d.AuthorName,
		CreatedAt:  d.CreatedAt,
	}
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)
