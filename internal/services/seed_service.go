package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/repositories"
)

// seedSkippedMessage is returned verbatim when the catalog already has data.
const seedSkippedMessage = "Products already exist"

// ErrSeedUnavailable indicates the catalog backend cannot be reached.
var ErrSeedUnavailable = errors.New("seed service: catalog backend unavailable")

// SeedServiceDeps bundles the catalog repository plus optional clock and ID
// generation overrides.
type SeedServiceDeps struct {
	Catalog     repositories.CatalogRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type seedService struct {
	catalog repositories.CatalogRepository
	now     func() time.Time
	newID   func() string
}

// NewSeedService constructs a SeedService backed by the catalog repository.
func NewSeedService(deps SeedServiceDeps) (SeedService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("seed service: catalog repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	generator := deps.IDGenerator
	if generator == nil {
		generator = func() string { return ulid.Make().String() }
	}
	return &seedService{
		catalog: deps.Catalog,
		now:     func() time.Time { return clock().UTC() },
		newID:   generator,
	}, nil
}

var _ SeedService = (*seedService)(nil)

// SeedProducts inserts the sample catalog when the products collection is
// empty. A non-empty catalog is left untouched and reported as is.
func (s *seedService) SeedProducts(ctx context.Context) (SeedResult, error) {
	if s == nil || s.catalog == nil {
		return SeedResult{}, ErrSeedUnavailable
	}

	count, err := s.catalog.Count(ctx)
	if err != nil {
		return SeedResult{}, ErrSeedUnavailable
	}
	if count > 0 {
		return SeedResult{Existing: count, Message: seedSkippedMessage}, nil
	}

	now := s.now()
	samples := sampleProducts()
	ids := make([]string, 0, len(samples))
	for _, sample := range samples {
		product := sample
		product.ID = s.newID()
		product.CreatedAt = now
		product.UpdatedAt = now
		if err := s.catalog.Insert(ctx, product); err != nil {
			return SeedResult{}, ErrSeedUnavailable
		}
		ids = append(ids, product.ID)
	}
	return SeedResult{Inserted: len(ids), IDs: ids}, nil
}

// sampleProducts returns the launch catalog used by the seed endpoint.
func sampleProducts() []domain.Product {
	return []domain.Product{
		{
			Name:        "AirFlex Runner",
			Brand:       "Aero",
			Description: "Lightweight running shoes with breathable mesh.",
			Price:       89.99,
			Sizes:       []int{7, 8, 9, 10, 11, 12},
			Style:       "sneaker",
			Images:      []string{"https://images.unsplash.com/photo-1528702748617-c64d49f918af?q=80&w=1200&auto=format&fit=crop"},
			InStock:     true,
			StockBySize: uniformStock([]int{7, 8, 9, 10, 11, 12}, 20),
			Tags:        []string{"running", "men"},
		},
		{
			Name:        "CloudStride Pro",
			Brand:       "Nimbus",
			Description: "Cushioned everyday sneakers for all-day comfort.",
			Price:       109.0,
			Sizes:       []int{5, 6, 7, 8, 9, 10},
			Style:       "sneaker",
			Images:      []string{"https://images.unsplash.com/photo-1542291026-7eec264c27ff?q=80&w=1200&auto=format&fit=crop"},
			InStock:     true,
			StockBySize: uniformStock([]int{5, 6, 7, 8, 9, 10}, 15),
			Tags:        []string{"women", "lifestyle"},
		},
		{
			Name:        "Urban Trek Boot",
			Brand:       "Trailforge",
			Description: "Rugged leather boots built for city and trail.",
			Price:       139.5,
			Sizes:       []int{7, 8, 9, 10, 11},
			Style:       "boot",
			Images:      []string{"https://images.unsplash.com/photo-1519741497674-611481863552?q=80&w=1200&auto=format&fit=crop"},
			InStock:     true,
			StockBySize: uniformStock([]int{7, 8, 9, 10, 11}, 10),
			Tags:        []string{"men", "leather"},
		},
	}
}

func uniformStock(sizes []int, perSize int) map[string]int {
	stock := make(map[string]int, len(sizes))
	for _, size := range sizes {
		stock[strconv.Itoa(size)] = perSize
	}
	return stock
}
