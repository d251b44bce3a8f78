package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/solebound/api/internal/platform/storage"
	"github.com/solebound/api/internal/repositories"
)

const (
	defaultProductListLimit = 24
	maxProductListLimit     = 200
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied malformed query input.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogProductNotFound indicates the requested product does not exist.
	ErrCatalogProductNotFound = errors.New("catalog service: product not found")
	// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
	ErrCatalogUnavailable = errors.New("catalog service: catalog backend unavailable")
)

// MediaLinkSigner issues browser-usable URLs for stored product images.
type MediaLinkSigner interface {
	SignedDownloadURL(ctx context.Context, objectPath string) (string, error)
}

// CatalogServiceDeps bundles repositories and the optional media signer. When
// Media is nil, stored object paths are served as is.
type CatalogServiceDeps struct {
	Catalog      repositories.CatalogRepository
	Reviews      repositories.ReviewRepository
	Media        MediaLinkSigner
	DefaultLimit int
	MaxLimit     int
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	catalog      repositories.CatalogRepository
	reviews      repositories.ReviewRepository
	media        MediaLinkSigner
	defaultLimit int
	maxLimit     int
	logger       func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService backed by the catalog and
// review repositories.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	if deps.Reviews == nil {
		return nil, errors.New("catalog service: review repository is required")
	}
	defaultLimit := deps.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = defaultProductListLimit
	}
	maxLimit := deps.MaxLimit
	if maxLimit <= 0 {
		maxLimit = maxProductListLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		catalog:      deps.Catalog,
		reviews:      deps.Reviews,
		media:        deps.Media,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}, nil
}

var _ CatalogService = (*catalogService)(nil)

// ListProducts returns in-stock products matching the query. The limit
// defaults and is clamped; out-of-stock products never appear in listings.
func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) (ProductListResult, error) {
	if s == nil || s.catalog == nil {
		return ProductListResult{}, ErrCatalogUnavailable
	}
	if query.MinPrice != nil && *query.MinPrice < 0 {
		return ProductListResult{}, fmt.Errorf("%w: min price must not be negative", ErrCatalogInvalidInput)
	}
	if query.MaxPrice != nil && *query.MaxPrice < 0 {
		return ProductListResult{}, fmt.Errorf("%w: max price must not be negative", ErrCatalogInvalidInput)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	products, err := s.catalog.List(ctx, repositories.ProductListFilter{
		Query:       trimStringPointer(query.Query),
		Brand:       trimStringPointer(query.Brand),
		Style:       trimStringPointer(query.Style),
		Size:        query.Size,
		MinPrice:    query.MinPrice,
		MaxPrice:    query.MaxPrice,
		InStockOnly: true,
		Limit:       limit,
	})
	if err != nil {
		return ProductListResult{}, s.translateRepoError(err)
	}

	items := make([]Product, 0, len(products))
	for _, product := range products {
		items = append(items, s.resolveMedia(ctx, product))
	}
	return ProductListResult{Items: items, Count: len(items)}, nil
}

// GetProduct returns the product together with its reviews. Detail reads do
// not apply the in-stock filter so direct links keep working.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (ProductDetail, error) {
	if s == nil || s.catalog == nil {
		return ProductDetail{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return ProductDetail{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return ProductDetail{}, ErrCatalogProductNotFound
		}
		return ProductDetail{}, s.translateRepoError(err)
	}

	reviews, err := s.reviews.ListByProduct(ctx, id)
	if err != nil {
		return ProductDetail{}, s.translateRepoError(err)
	}
	if reviews == nil {
		reviews = []Review{}
	}
	return ProductDetail{Product: s.resolveMedia(ctx, product), Reviews: reviews}, nil
}

// resolveMedia swaps stored object paths for signed download URLs. Absolute
// URLs and references that fail to sign pass through untouched.
func (s *catalogService) resolveMedia(ctx context.Context, product Product) Product {
	if s.media == nil || len(product.Images) == 0 {
		return product
	}
	images := make([]string, len(product.Images))
	for i, ref := range product.Images {
		images[i] = s.resolveImage(ctx, product.ID, ref)
	}
	product.Images = images
	return product
}

func (s *catalogService) resolveImage(ctx context.Context, productID, ref string) string {
	if storage.IsExternalURL(ref) {
		return ref
	}
	path, err := storage.NormalizeObjectPath(ref)
	if err != nil {
		return ref
	}
	signed, err := s.media.SignedDownloadURL(ctx, path)
	if err != nil {
		s.logger(ctx, "catalog.media_sign_failed", map[string]any{
			"productId": productID,
			"object":    path,
			"error":     err.Error(),
		})
		return ref
	}
	return signed
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCatalogProductNotFound
		case repoErr.IsUnavailable():
			return ErrCatalogUnavailable
		}
	}
	return ErrCatalogUnavailable
}
