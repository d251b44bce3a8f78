package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/platform/pagination"
	"github.com/solebound/api/internal/repositories"
)

const (
	defaultOrderListLimit = 50
	maxOrderListLimit     = 200
)

var (
	// ErrOrderInvalidInput indicates the history query was malformed.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
	ErrOrderUnavailable = errors.New("order service: order backend unavailable")
)

// OrderServiceDeps bundles the order repository and listing page bounds.
type OrderServiceDeps struct {
	Repository   repositories.OrderRepository
	DefaultLimit int
	MaxLimit     int
}

type orderService struct {
	repo         repositories.OrderRepository
	defaultLimit int
	maxLimit     int
}

// NewOrderService constructs an OrderService backed by the order repository.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errors.New("order service: repository is required")
	}
	defaultLimit := deps.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = defaultOrderListLimit
	}
	maxLimit := deps.MaxLimit
	if maxLimit <= 0 {
		maxLimit = maxOrderListLimit
	}
	return &orderService{
		repo:         deps.Repository,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

var _ OrderService = (*orderService)(nil)

// ListOrders returns a page of orders newest first, optionally scoped to a
// user. The limit defaults and is clamped.
func (s *orderService) ListOrders(ctx context.Context, query OrderHistoryQuery) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}

	limit := query.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	page, err := s.repo.List(ctx, repositories.OrderListFilter{
		UserID:    strings.TrimSpace(query.UserID),
		DateRange: query.DateRange,
		Pagination: domain.Pagination{
			PageSize:  limit,
			PageToken: strings.TrimSpace(query.PageToken),
		},
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: invalid page token", ErrOrderInvalidInput)
		}
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}
