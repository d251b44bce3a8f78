package services

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/repositories"
)

// PromotionServiceDeps bundles dependencies required to construct a PromotionService.
type PromotionServiceDeps struct {
	Repository repositories.PromoCodeRepository
}

type promotionService struct {
	repo repositories.PromoCodeRepository
}

// NewPromotionService wires a PromotionService backed by the promo code repository.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Repository == nil {
		return nil, ErrPromotionRepositoryMissing
	}
	return &promotionService{repo: deps.Repository}, nil
}

var _ PromotionService = (*promotionService)(nil)

// Evaluate resolves a code to the discount it grants on the subtotal. Codes
// match by exact string against active promotions; unknown or inactive codes
// yield a zero discount rather than an error. Amount discounts return the
// stored value as is, percentage discounts return subtotal * value / 100
// without rounding.
func (s *promotionService) Evaluate(ctx context.Context, cmd EvaluatePromotionCommand) (PromotionResult, error) {
	if s == nil || s.repo == nil {
		return PromotionResult{}, ErrPromotionUnavailable
	}
	if cmd.Subtotal < 0 {
		return PromotionResult{}, fmt.Errorf("%w: subtotal must not be negative", ErrPromotionInvalidInput)
	}
	code := strings.TrimSpace(cmd.Code)
	if code == "" {
		return PromotionResult{}, nil
	}

	promo, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if isRepoNotFound(err) {
			return PromotionResult{Code: code}, nil
		}
		return PromotionResult{}, ErrPromotionUnavailable
	}

	var discount float64
	switch promo.DiscountType {
	case domain.DiscountTypeAmount:
		discount = promo.Value
	default:
		discount = cmd.Subtotal * promo.Value / 100
	}
	return PromotionResult{Code: code, Discount: discount, Applied: true}, nil
}
