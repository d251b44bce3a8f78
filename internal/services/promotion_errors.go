package services

import "errors"

var (
	// ErrPromotionRepositoryMissing indicates the promo code repository dependency is absent.
	ErrPromotionRepositoryMissing = errors.New("promotion service: repository is not configured")
	// ErrPromotionInvalidInput indicates the evaluation inputs were malformed.
	ErrPromotionInvalidInput = errors.New("promotion service: invalid input")
	// ErrPromotionUnavailable indicates the promo code backend cannot be reached.
	ErrPromotionUnavailable = errors.New("promotion service: promo backend unavailable")
)
