//go:build integration

package firestore

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	domain "github.com/solebound/api/internal/domain"
	pconfig "github.com/solebound/api/internal/platform/config"
	pfirestore "github.com/solebound/api/internal/platform/firestore"
	"github.com/solebound/api/internal/repositories"
)

func TestCatalogRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "catalog-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewCatalogRepository(provider)
	if err != nil {
		t.Fatalf("new catalog repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	products := []domain.Product{
		{
			ID:          "prod-airflex",
			Name:        "AirFlex Runner",
			Brand:       "Aero",
			Description: "Lightweight running shoes with breathable mesh.",
			Price:       89.99,
			Sizes:       []int{7, 8, 9, 10, 11, 12},
			Style:       "sneaker",
			InStock:     true,
			Tags:        []string{"running", "men"},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "prod-cloudstride",
			Name:        "CloudStride Pro",
			Brand:       "Nimbus",
			Description: "Cushioned everyday sneakers for all-day comfort.",
			Price:       109.0,
			Sizes:       []int{5, 6, 7, 8, 9, 10},
			Style:       "sneaker",
			InStock:     true,
			Tags:        []string{"women", "lifestyle"},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "prod-urbantrek",
			Name:        "Urban Trek Boot",
			Brand:       "Trailforge",
			Description: "Rugged leather boots built for city and trail.",
			Price:       139.5,
			Sizes:       []int{7, 8, 9, 10, 11},
			Style:       "boot",
			InStock:     true,
			Tags:        []string{"men", "leather"},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "prod-retro",
			Name:        "Retro Court Low",
			Brand:       "Heritage",
			Description: "Discontinued court classic.",
			Price:       59.99,
			Sizes:       []int{8, 9, 10},
			Style:       "sneaker",
			InStock:     false,
			Tags:        []string{"unisex"},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	for _, product := range products {
		if err := repo.Insert(ctx, product); err != nil {
			t.Fatalf("insert %s: %v", product.ID, err)
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected count 4 got %d", count)
	}

	all, err := repo.List(ctx, repositories.ProductListFilter{Limit: 24})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 products got %d", len(all))
	}

	inStock, err := repo.List(ctx, repositories.ProductListFilter{InStockOnly: true, Limit: 24})
	if err != nil {
		t.Fatalf("list in stock: %v", err)
	}
	if len(inStock) != 3 {
		t.Fatalf("expected 3 in-stock products got %d", len(inStock))
	}
	for _, product := range inStock {
		if !product.InStock {
			t.Fatalf("expected only in-stock products, got %+v", product)
		}
	}

	brand := "trailforge"
	byBrand, err := repo.List(ctx, repositories.ProductListFilter{Brand: &brand, Limit: 24})
	if err != nil {
		t.Fatalf("list by brand: %v", err)
	}
	if len(byBrand) != 1 || byBrand[0].ID != "prod-urbantrek" {
		t.Fatalf("expected urban trek for brand filter, got %+v", byBrand)
	}

	style := "SNEAKER"
	size := 5
	byStyleSize, err := repo.List(ctx, repositories.ProductListFilter{Style: &style, Size: &size, Limit: 24})
	if err != nil {
		t.Fatalf("list by style and size: %v", err)
	}
	if len(byStyleSize) != 1 || byStyleSize[0].ID != "prod-cloudstride" {
		t.Fatalf("expected cloudstride for style+size filter, got %+v", byStyleSize)
	}

	minPrice := 100.0
	maxPrice := 140.0
	byPrice, err := repo.List(ctx, repositories.ProductListFilter{MinPrice: &minPrice, MaxPrice: &maxPrice, Limit: 24})
	if err != nil {
		t.Fatalf("list by price: %v", err)
	}
	if len(byPrice) != 2 {
		t.Fatalf("expected 2 products in price range, got %d", len(byPrice))
	}

	query := "LEATHER"
	bySearch, err := repo.List(ctx, repositories.ProductListFilter{Query: &query, Limit: 24})
	if err != nil {
		t.Fatalf("list by search: %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].ID != "prod-urbantrek" {
		t.Fatalf("expected urban trek for search, got %+v", bySearch)
	}

	if err := repo.UpdateRating(ctx, "prod-airflex", domain.RatingSummary{Average: 4.33, Count: 3}, now.Add(time.Minute)); err != nil {
		t.Fatalf("update rating: %v", err)
	}
	rated, err := repo.FindByID(ctx, "prod-airflex")
	if err != nil {
		t.Fatalf("find rated product: %v", err)
	}
	if rated.Rating.Average != 4.33 || rated.Rating.Count != 3 {
		t.Fatalf("expected rating {4.33 3} got %+v", rated.Rating)
	}
}
