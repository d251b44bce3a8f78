package firestore

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/solebound/api/internal/domain"
	pfirestore "github.com/solebound/api/internal/platform/firestore"
	"github.com/solebound/api/internal/repositories"
)

const promoCodeCollection = "promoCodes"

// PromoCodeRepository reads promotion reference data from Firestore. Codes are
// managed out of band; this repository never writes.
type PromoCodeRepository struct {
	provider *pfirestore.Provider
}

// NewPromoCodeRepository constructs a Firestore-backed promo code repository.
func NewPromoCodeRepository(provider *pfirestore.Provider) (*PromoCodeRepository, error) {
	if provider == nil {
		return nil, errors.New("promo code repository requires firestore provider")
	}
	return &PromoCodeRepository{provider: provider}, nil
}

// FindActiveByCode matches the stored code exactly and only considers active documents.
func (r *PromoCodeRepository) FindActiveByCode(ctx context.Context, code string) (domain.PromoCode, error) {
	if r == nil || r.provider == nil {
		return domain.PromoCode{}, errors.New("promo code repository not initialised")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return domain.PromoCode{}, errors.New("promo code repository: code is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.PromoCode{}, err
	}

	iter := client.Collection(promoCodeCollection).
		Where("code", "==", trimmed).
		Where("active", "==", true).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.PromoCode{}, pfirestore.WrapError("promoCodes.lookup", status.Error(codes.NotFound, "promo code not found"))
	}
	if err != nil {
		return domain.PromoCode{}, pfirestore.WrapError("promoCodes.lookup", err)
	}

	var doc promoCodeDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.PromoCode{}, pfirestore.WrapError("promoCodes.lookup", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

type promoCodeDocument struct {
	Code         string  `firestore:"code"`
	DiscountType string  `firestore:"discountType"`
	Value        float64 `firestore:"value"`
	Active       bool    `firestore:"active"`
	Description  *string `firestore:"description,omitempty"`
}

func (d promoCodeDocument) toDomain(id string) domain.PromoCode {
	return domain.PromoCode{
		ID:           id,
		Code:         d.Code,
		DiscountType: domain.DiscountType(d.DiscountType),
		Value:        d.Value,
		Active:       d.Active,
		Description:  d.Description,
	}
}

var _ repositories.PromoCodeRepository = (*PromoCodeRepository)(nil)
