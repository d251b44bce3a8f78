package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/repositories"
)

func catalogFixture(t *testing.T, deps CatalogServiceDeps) CatalogService {
	t.Helper()
	if deps.Catalog == nil {
		deps.Catalog = &stubCatalogRepository{}
	}
	if deps.Reviews == nil {
		deps.Reviews = &stubReviewRepository{}
	}
	svc, err := NewCatalogService(deps)
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc
}

func TestCatalogService_ListProducts_AppliesStockFilterAndLimit(t *testing.T) {
	catalog := &stubCatalogRepository{
		list: []domain.Product{
			{ID: "prod-1", Name: "AirFlex Runner", InStock: true},
			{ID: "prod-2", Name: "CloudStride Pro", InStock: true},
		},
	}
	svc := catalogFixture(t, CatalogServiceDeps{Catalog: catalog})

	result, err := svc.ListProducts(context.Background(), ProductListQuery{})
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if result.Count != 2 || len(result.Items) != 2 {
		t.Fatalf("expected 2 items got %d/%d", result.Count, len(result.Items))
	}
	if !catalog.lastFilter.InStockOnly {
		t.Fatalf("listings must always filter to in-stock products")
	}
	if catalog.lastFilter.Limit != defaultProductListLimit {
		t.Fatalf("expected default limit %d got %d", defaultProductListLimit, catalog.lastFilter.Limit)
	}
}

func TestCatalogService_ListProducts_ClampsLimit(t *testing.T) {
	catalog := &stubCatalogRepository{}
	svc := catalogFixture(t, CatalogServiceDeps{Catalog: catalog})

	if _, err := svc.ListProducts(context.Background(), ProductListQuery{Limit: 5000}); err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if catalog.lastFilter.Limit != maxProductListLimit {
		t.Fatalf("expected limit clamped to %d got %d", maxProductListLimit, catalog.lastFilter.Limit)
	}
}

func TestCatalogService_ListProducts_PassesFilters(t *testing.T) {
	catalog := &stubCatalogRepository{}
	svc := catalogFixture(t, CatalogServiceDeps{Catalog: catalog})

	query := "mesh "
	brand := " Aero"
	style := "sneaker"
	size := 9
	minPrice := 50.0
	maxPrice := 150.0
	_, err := svc.ListProducts(context.Background(), ProductListQuery{
		Query:    &query,
		Brand:    &brand,
		Style:    &style,
		Size:     &size,
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}

	filter := catalog.lastFilter
	if filter.Query == nil || *filter.Query != "mesh" {
		t.Fatalf("expected trimmed query, got %v", filter.Query)
	}
	if filter.Brand == nil || *filter.Brand != "Aero" {
		t.Fatalf("expected trimmed brand, got %v", filter.Brand)
	}
	if filter.Style == nil || *filter.Style != "sneaker" {
		t.Fatalf("unexpected style %v", filter.Style)
	}
	if filter.Size == nil || *filter.Size != 9 {
		t.Fatalf("unexpected size %v", filter.Size)
	}
	if filter.MinPrice == nil || *filter.MinPrice != 50 || filter.MaxPrice == nil || *filter.MaxPrice != 150 {
		t.Fatalf("unexpected price range %v %v", filter.MinPrice, filter.MaxPrice)
	}
	if filter.Limit != 10 {
		t.Fatalf("unexpected limit %d", filter.Limit)
	}
}

func TestCatalogService_ListProducts_NegativePriceRejected(t *testing.T) {
	svc := catalogFixture(t, CatalogServiceDeps{})
	minPrice := -5.0
	if _, err := svc.ListProducts(context.Background(), ProductListQuery{MinPrice: &minPrice}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput got %v", err)
	}
}

func TestCatalogService_ListProducts_SignsObjectPaths(t *testing.T) {
	catalog := &stubCatalogRepository{
		list: []domain.Product{
			{
				ID:      "prod-1",
				InStock: true,
				Images: []string{
					"products/prod-1/images/main.png",
					"https://images.example.com/external.png",
				},
			},
		},
	}
	signer := &stubMediaSigner{prefix: "https://cdn.example.com/"}
	svc := catalogFixture(t, CatalogServiceDeps{Catalog: catalog, Media: signer})

	result, err := svc.ListProducts(context.Background(), ProductListQuery{})
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	images := result.Items[0].Images
	if images[0] != "https://cdn.example.com/products/prod-1/images/main.png" {
		t.Fatalf("expected signed url, got %q", images[0])
	}
	if images[1] != "https://images.example.com/external.png" {
		t.Fatalf("absolute urls must pass through, got %q", images[1])
	}
}

func TestCatalogService_ListProducts_SigningFailureKeepsRawPath(t *testing.T) {
	catalog := &stubCatalogRepository{
		list: []domain.Product{
			{ID: "prod-1", InStock: true, Images: []string{"products/prod-1/images/main.png"}},
		},
	}
	signer := &stubMediaSigner{err: errors.New("signer offline")}
	svc := catalogFixture(t, CatalogServiceDeps{Catalog: catalog, Media: signer})

	result, err := svc.ListProducts(context.Background(), ProductListQuery{})
	if err != nil {
		t.Fatalf("signing failures must not fail the listing, got %v", err)
	}
	if result.Items[0].Images[0] != "products/prod-1/images/main.png" {
		t.Fatalf("expected raw path fallback, got %q", result.Items[0].Images[0])
	}
}

func TestCatalogService_GetProduct_ReturnsReviews(t *testing.T) {
	catalog := &stubCatalogRepository{product: domain.Product{ID: "prod-1", Name: "AirFlex Runner"}}
	reviews := &stubReviewRepository{
		listResult: []domain.Review{
			{ID: "rev-1", ProductID: "prod-1", Rating: 5},
		},
	}
	svc := catalogFixture(t, CatalogServiceDeps{Catalog: catalog, Reviews: reviews})

	detail, err := svc.GetProduct(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("GetProduct returned error: %v", err)
	}
	if detail.ID != "prod-1" {
		t.Fatalf("unexpected product %+v", detail.Product)
	}
	if len(detail.Reviews) != 1 || detail.Reviews[0].ID != "rev-1" {
		t.Fatalf("unexpected reviews %+v", detail.Reviews)
	}
}

func TestCatalogService_GetProduct_NoReviewsReadsEmpty(t *testing.T) {
	catalog := &stubCatalogRepository{product: domain.Product{ID: "prod-1"}}
	svc := catalogFixture(t, CatalogServiceDeps{Catalog: catalog})

	detail, err := svc.GetProduct(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("GetProduct returned error: %v", err)
	}
	if detail.Reviews == nil || len(detail.Reviews) != 0 {
		t.Fatalf("expected empty review slice, got %#v", detail.Reviews)
	}
}

func TestCatalogService_GetProduct_NotFound(t *testing.T) {
	svc := catalogFixture(t, CatalogServiceDeps{
		Catalog: &stubCatalogRepository{findErr: &stubRepoError{notFound: true}},
	})

	if _, err := svc.GetProduct(context.Background(), "prod-x"); !errors.Is(err, ErrCatalogProductNotFound) {
		t.Fatalf("expected ErrCatalogProductNotFound got %v", err)
	}
}

func TestCatalogService_GetProduct_BlankID(t *testing.T) {
	svc := catalogFixture(t, CatalogServiceDeps{})
	if _, err := svc.GetProduct(context.Background(), "   "); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput got %v", err)
	}
}

type ratingUpdate struct {
	productID string
	rating    domain.RatingSummary
	at        time.Time
}

type stubCatalogRepository struct {
	product         domain.Product
	findErr         error
	list            []domain.Product
	listErr         error
	count           int64
	countErr        error
	inserted        []domain.Product
	insertErr       error
	ratingUpdates   []ratingUpdate
	updateRatingErr error

	lastFilter repositories.ProductListFilter
}

func (s *stubCatalogRepository) Insert(_ context.Context, product domain.Product) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, product)
	return nil
}

func (s *stubCatalogRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	if s.findErr != nil {
		return domain.Product{}, s.findErr
	}
	return s.product, nil
}

func (s *stubCatalogRepository) List(_ context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list, nil
}

func (s *stubCatalogRepository) Count(context.Context) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.count, nil
}

func (s *stubCatalogRepository) UpdateRating(_ context.Context, productID string, rating domain.RatingSummary, updatedAt time.Time) error {
	if s.updateRatingErr != nil {
		return s.updateRatingErr
	}
	s.ratingUpdates = append(s.ratingUpdates, ratingUpdate{productID: productID, rating: rating, at: updatedAt})
	return nil
}

type stubMediaSigner struct {
	prefix string
	err    error
}

func (s *stubMediaSigner) SignedDownloadURL(_ context.Context, objectPath string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.prefix + objectPath, nil
}
