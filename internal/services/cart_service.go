package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/repositories"
)

var errCartRepositoryRequired = errors.New("cart service: repository is required")

var (
	// ErrCartInvalidInput indicates the caller supplied malformed cart input.
	ErrCartInvalidInput = errors.New("cart service: invalid input")
	// ErrCartNotFound indicates no cart exists for the owner.
	ErrCartNotFound = errors.New("cart service: cart not found")
	// ErrCartConflict indicates the cart changed underneath the caller.
	ErrCartConflict = errors.New("cart service: cart was modified concurrently")
	// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
	ErrCartUnavailable = errors.New("cart service: cart backend unavailable")
)

// CartServiceDeps wires the cart repository plus optional clock and ID
// generation overrides.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type cartService struct {
	repo  repositories.CartRepository
	now   func() time.Time
	newID func() string
}

// NewCartService constructs a CartService backed by the supplied repository.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	generator := deps.IDGenerator
	if generator == nil {
		generator = func() string { return ulid.Make().String() }
	}
	return &cartService{
		repo:  deps.Repository,
		now:   func() time.Time { return clock().UTC() },
		newID: generator,
	}, nil
}

var _ CartService = (*cartService)(nil)

// Add merges the incoming line into the owner's cart, creating the cart on
// first use. Lines merge on (product, size); a merge only bumps the quantity
// and keeps the stored name, price, and image.
func (s *cartService) Add(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	owner, err := normalizeOwner(cmd.Owner, ErrCartInvalidInput)
	if err != nil {
		return Cart{}, err
	}
	item, err := normalizeCartItem(cmd.Item)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, s.translateRepoError(err)
		}
		now := s.now()
		fresh := domain.Cart{
			ID:        s.newID(),
			Owner:     owner,
			Items:     []domain.CartItem{item},
			CreatedAt: now,
			UpdatedAt: now,
		}
		saved, upsertErr := s.repo.Upsert(ctx, fresh, nil)
		if upsertErr != nil {
			return Cart{}, s.translateRepoError(upsertErr)
		}
		return saved, nil
	}

	items := cloneCartItems(cart.Items)
	merged := false
	for i := range items {
		if items[i].ProductID == item.ProductID && items[i].Size == item.Size {
			items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, item)
	}

	expected := cart.UpdatedAt
	cart.Items = items
	cart.UpdatedAt = s.now()
	saved, err := s.repo.Upsert(ctx, cart, &expected)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return saved, nil
}

// Remove drops the line matching (product, size). Removing a line that is not
// in the cart succeeds; removing from a missing cart reports ErrCartNotFound.
func (s *cartService) Remove(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	owner, err := normalizeOwner(cmd.Owner, ErrCartInvalidInput)
	if err != nil {
		return Cart{}, err
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}

	items := make([]domain.CartItem, 0, len(cart.Items))
	for _, existing := range cart.Items {
		if existing.ProductID == productID && existing.Size == cmd.Size {
			continue
		}
		items = append(items, existing)
	}

	expected := cart.UpdatedAt
	cart.Items = items
	cart.UpdatedAt = s.now()
	saved, err := s.repo.Upsert(ctx, cart, &expected)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return saved, nil
}

// Clear deletes the owner's cart. Clearing an absent cart succeeds.
func (s *cartService) Clear(ctx context.Context, owner CartOwner) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	normalized, err := normalizeOwner(owner, ErrCartInvalidInput)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, normalized); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	return nil
}

// Get returns the owner's cart with its derived total. An absent cart reads
// as an empty cart with a zero total.
func (s *cartService) Get(ctx context.Context, owner CartOwner) (CartView, error) {
	if s == nil || s.repo == nil {
		return CartView{}, ErrCartUnavailable
	}
	normalized, err := normalizeOwner(owner, ErrCartInvalidInput)
	if err != nil {
		return CartView{}, err
	}

	cart, err := s.repo.FindByOwner(ctx, normalized)
	if err != nil {
		if isRepoNotFound(err) {
			return CartView{
				Cart: domain.Cart{Owner: normalized, Items: []domain.CartItem{}},
			}, nil
		}
		return CartView{}, s.translateRepoError(err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return CartView{Cart: cart, Total: roundAmount(itemsSubtotal(cart.Items))}, nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}

// normalizeOwner validates and trims a cart owner, wrapping failures in the
// caller's invalid-input sentinel.
func normalizeOwner(owner domain.CartOwner, invalid error) (domain.CartOwner, error) {
	ownerType := domain.OwnerType(strings.TrimSpace(string(owner.Type)))
	ownerID := strings.TrimSpace(owner.ID)
	if ownerID == "" {
		return domain.CartOwner{}, fmt.Errorf("%w: owner id is required", invalid)
	}
	switch ownerType {
	case domain.OwnerTypeUser, domain.OwnerTypeSession:
	default:
		return domain.CartOwner{}, fmt.Errorf("%w: owner type must be user or session", invalid)
	}
	return domain.CartOwner{Type: ownerType, ID: ownerID}, nil
}

func normalizeCartItem(item domain.CartItem) (domain.CartItem, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return domain.CartItem{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	item.Name = strings.TrimSpace(item.Name)
	if item.Price < 0 {
		return domain.CartItem{}, fmt.Errorf("%w: price must not be negative", ErrCartInvalidInput)
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.Quantity < 0 {
		return domain.CartItem{}, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}
	if item.Image != nil {
		trimmed := strings.TrimSpace(*item.Image)
		if trimmed == "" {
			item.Image = nil
		} else {
			item.Image = &trimmed
		}
	}
	return item, nil
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return []domain.CartItem{}
	}
	dup := make([]domain.CartItem, len(items))
	copy(dup, items)
	for i := range dup {
		if dup[i].Image != nil {
			image := *dup[i].Image
			dup[i].Image = &image
		}
	}
	return dup
}

// itemsSubtotal sums price times quantity across the lines without rounding.
func itemsSubtotal(items []domain.CartItem) float64 {
	var subtotal float64
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		subtotal += item.Price * float64(item.Quantity)
	}
	return subtotal
}

// roundAmount rounds to two decimal places, the precision used for every
// derived amount the API returns.
func roundAmount(value float64) float64 {
	return math.Round(value*100) / 100
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func trimStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
