package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/solebound/api/internal/domain"
)

func strPtr(v string) *string {
	return &v
}

func testOwner() domain.CartOwner {
	return domain.CartOwner{Type: domain.OwnerTypeSession, ID: "sess-123"}
}

func TestCartService_Add_CreatesCartOnFirstItem(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{findErr: &stubRepoError{notFound: true}}

	svc, err := NewCartService(CartServiceDeps{
		Repository:  repo,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "cart-01" },
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	saved, err := svc.Add(context.Background(), AddCartItemCommand{
		Owner: testOwner(),
		Item: domain.CartItem{
			ProductID: "prod-1",
			Name:      "AirFlex Runner",
			Price:     89.99,
			Size:      9,
		},
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if saved.ID != "cart-01" {
		t.Fatalf("unexpected cart id %q", saved.ID)
	}
	if len(saved.Items) != 1 {
		t.Fatalf("expected 1 item got %d", len(saved.Items))
	}
	if saved.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity to default to 1, got %d", saved.Items[0].Quantity)
	}
	if !saved.CreatedAt.Equal(now) || !saved.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %v / %v", saved.CreatedAt, saved.UpdatedAt)
	}
	if repo.lastExpected != nil {
		t.Fatalf("creation must not carry an optimistic lock guard")
	}
}

func TestCartService_Add_MergesMatchingLine(t *testing.T) {
	updated := time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{
		cart: domain.Cart{
			ID:    "cart-7",
			Owner: testOwner(),
			Items: []domain.CartItem{
				{ProductID: "prod-1", Name: "AirFlex Runner", Price: 89.99, Size: 9, Quantity: 2},
				{ProductID: "prod-2", Name: "CloudStride Pro", Price: 109, Size: 8, Quantity: 1},
			},
			UpdatedAt: updated,
		},
	}

	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	saved, err := svc.Add(context.Background(), AddCartItemCommand{
		Owner: testOwner(),
		Item:  domain.CartItem{ProductID: "prod-1", Name: "stale name", Price: 1, Size: 9, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if len(saved.Items) != 2 {
		t.Fatalf("merge must not add a line, got %d", len(saved.Items))
	}
	if saved.Items[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5 got %d", saved.Items[0].Quantity)
	}
	if saved.Items[0].Name != "AirFlex Runner" || saved.Items[0].Price != 89.99 {
		t.Fatalf("merge must keep the stored snapshot, got %+v", saved.Items[0])
	}
	if repo.lastExpected == nil || !repo.lastExpected.Equal(updated) {
		t.Fatalf("expected optimistic lock on previous update time, got %v", repo.lastExpected)
	}
}

func TestCartService_Add_SameProductDifferentSizeAppends(t *testing.T) {
	repo := &stubCartRepository{
		cart: domain.Cart{
			ID:    "cart-7",
			Owner: testOwner(),
			Items: []domain.CartItem{
				{ProductID: "prod-1", Price: 89.99, Size: 9, Quantity: 1},
			},
		},
	}

	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	saved, err := svc.Add(context.Background(), AddCartItemCommand{
		Owner: testOwner(),
		Item:  domain.CartItem{ProductID: "prod-1", Price: 89.99, Size: 10, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if len(saved.Items) != 2 {
		t.Fatalf("expected a second line for the new size, got %d", len(saved.Items))
	}
}

func TestCartService_Add_ValidationErrors(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Repository: &stubCartRepository{}})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	cases := []struct {
		name string
		cmd  AddCartItemCommand
	}{
		{
			name: "missing owner id",
			cmd: AddCartItemCommand{
				Owner: domain.CartOwner{Type: domain.OwnerTypeUser},
				Item:  domain.CartItem{ProductID: "prod-1"},
			},
		},
		{
			name: "unknown owner type",
			cmd: AddCartItemCommand{
				Owner: domain.CartOwner{Type: "robot", ID: "r2"},
				Item:  domain.CartItem{ProductID: "prod-1"},
			},
		},
		{
			name: "missing product id",
			cmd: AddCartItemCommand{
				Owner: testOwner(),
				Item:  domain.CartItem{ProductID: "  "},
			},
		},
		{
			name: "negative price",
			cmd: AddCartItemCommand{
				Owner: testOwner(),
				Item:  domain.CartItem{ProductID: "prod-1", Price: -1},
			},
		},
		{
			name: "negative quantity",
			cmd: AddCartItemCommand{
				Owner: testOwner(),
				Item:  domain.CartItem{ProductID: "prod-1", Quantity: -2},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Add(context.Background(), tc.cmd); !errors.Is(err, ErrCartInvalidInput) {
				t.Fatalf("expected ErrCartInvalidInput got %v", err)
			}
		})
	}
}

func TestCartService_Add_ConflictSurfaces(t *testing.T) {
	repo := &stubCartRepository{
		cart:      domain.Cart{ID: "cart-7", Owner: testOwner(), Items: []domain.CartItem{{ProductID: "prod-1", Size: 9, Quantity: 1}}},
		upsertErr: &stubRepoError{conflict: true},
	}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.Add(context.Background(), AddCartItemCommand{
		Owner: testOwner(),
		Item:  domain.CartItem{ProductID: "prod-1", Size: 9, Quantity: 1},
	})
	if !errors.Is(err, ErrCartConflict) {
		t.Fatalf("expected ErrCartConflict got %v", err)
	}
}

func TestCartService_Remove_DropsMatchingLine(t *testing.T) {
	repo := &stubCartRepository{
		cart: domain.Cart{
			ID:    "cart-7",
			Owner: testOwner(),
			Items: []domain.CartItem{
				{ProductID: "prod-1", Size: 9, Quantity: 2},
				{ProductID: "prod-1", Size: 10, Quantity: 1},
			},
		},
	}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	saved, err := svc.Remove(context.Background(), RemoveCartItemCommand{
		Owner:     testOwner(),
		ProductID: "prod-1",
		Size:      9,
	})
	if err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if len(saved.Items) != 1 {
		t.Fatalf("expected 1 remaining item got %d", len(saved.Items))
	}
	if saved.Items[0].Size != 10 {
		t.Fatalf("removed the wrong line: %+v", saved.Items[0])
	}
}

func TestCartService_Remove_AbsentLineIsNoOp(t *testing.T) {
	repo := &stubCartRepository{
		cart: domain.Cart{
			ID:    "cart-7",
			Owner: testOwner(),
			Items: []domain.CartItem{{ProductID: "prod-1", Size: 9, Quantity: 2}},
		},
	}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	saved, err := svc.Remove(context.Background(), RemoveCartItemCommand{
		Owner:     testOwner(),
		ProductID: "prod-9",
		Size:      12,
	})
	if err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if len(saved.Items) != 1 {
		t.Fatalf("no-op remove must keep the cart intact, got %d items", len(saved.Items))
	}
}

func TestCartService_Remove_MissingCart(t *testing.T) {
	repo := &stubCartRepository{findErr: &stubRepoError{notFound: true}}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.Remove(context.Background(), RemoveCartItemCommand{
		Owner:     testOwner(),
		ProductID: "prod-1",
		Size:      9,
	})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound got %v", err)
	}
}

func TestCartService_Clear_IsIdempotent(t *testing.T) {
	repo := &stubCartRepository{deleteErr: &stubRepoError{notFound: true}}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	if err := svc.Clear(context.Background(), testOwner()); err != nil {
		t.Fatalf("clearing an absent cart must succeed, got %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Fatalf("expected one delete call, got %d", len(repo.deleted))
	}
}

func TestCartService_Get_AbsentCartReadsEmpty(t *testing.T) {
	repo := &stubCartRepository{findErr: &stubRepoError{notFound: true}}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	view, err := svc.Get(context.Background(), testOwner())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if view.Items == nil || len(view.Items) != 0 {
		t.Fatalf("expected empty item slice, got %#v", view.Items)
	}
	if view.Total != 0 {
		t.Fatalf("expected zero total got %v", view.Total)
	}
	if view.Owner != testOwner() {
		t.Fatalf("expected owner to round-trip, got %+v", view.Owner)
	}
}

func TestCartService_Get_ComputesRoundedTotal(t *testing.T) {
	repo := &stubCartRepository{
		cart: domain.Cart{
			ID:    "cart-7",
			Owner: testOwner(),
			Items: []domain.CartItem{
				{ProductID: "prod-1", Price: 89.99, Size: 9, Quantity: 2},
				{ProductID: "prod-2", Price: 109, Size: 8, Quantity: 1},
			},
		},
	}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	view, err := svc.Get(context.Background(), testOwner())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if view.Total != 288.98 {
		t.Fatalf("expected total 288.98 got %v", view.Total)
	}
}

func TestCartService_Get_BackendUnavailable(t *testing.T) {
	repo := &stubCartRepository{findErr: &stubRepoError{unavailable: true}}
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	if _, err := svc.Get(context.Background(), testOwner()); !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable got %v", err)
	}
}

type stubCartRepository struct {
	cart      domain.Cart
	findErr   error
	upsertErr error
	deleteErr error

	upserted     []domain.Cart
	lastExpected *time.Time
	deleted      []domain.CartOwner
}

func (s *stubCartRepository) FindByOwner(_ context.Context, owner domain.CartOwner) (domain.Cart, error) {
	if s.findErr != nil {
		return domain.Cart{}, s.findErr
	}
	return s.cart, nil
}

func (s *stubCartRepository) Upsert(_ context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	s.lastExpected = expectedUpdate
	if s.upsertErr != nil {
		return domain.Cart{}, s.upsertErr
	}
	s.upserted = append(s.upserted, cart)
	return cart, nil
}

func (s *stubCartRepository) Delete(_ context.Context, owner domain.CartOwner) error {
	s.deleted = append(s.deleted, owner)
	return s.deleteErr
}

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }
