package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/solebound/api/internal/platform/firestore"
	"github.com/solebound/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories.Registry
// contract so services and handlers can be wired from a single dependency.
type Registry struct {
	provider *pfirestore.Provider

	catalog     *CatalogRepository
	reviews     *ReviewRepository
	carts       *CartRepository
	orders      *OrderRepository
	promoCodes  *PromoCodeRepository
	diagnostics *DiagnosticsRepository
	health      repositories.HealthRepository
}

// RegistryDeps carries the inputs required to assemble the registry.
type RegistryDeps struct {
	Provider   *pfirestore.Provider
	DatabaseID string
	Health     repositories.HealthRepository
}

// NewRegistry constructs every Firestore repository against the shared provider.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if deps.Health == nil {
		return nil, errors.New("registry requires health repository")
	}

	catalog, err := NewCatalogRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	reviews, err := NewReviewRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	promoCodes, err := NewPromoCodeRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	diagnostics, err := NewDiagnosticsRepository(deps.Provider, deps.DatabaseID)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:    deps.Provider,
		catalog:     catalog,
		reviews:     reviews,
		carts:       carts,
		orders:      orders,
		promoCodes:  promoCodes,
		diagnostics: diagnostics,
		health:      deps.Health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Catalog returns the product repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Reviews returns the review repository.
func (r *Registry) Reviews() repositories.ReviewRepository { return r.reviews }

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// PromoCodes returns the promo code repository.
func (r *Registry) PromoCodes() repositories.PromoCodeRepository { return r.promoCodes }

// Diagnostics returns the diagnostics repository.
func (r *Registry) Diagnostics() repositories.DiagnosticsRepository { return r.diagnostics }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

var _ repositories.Registry = (*Registry)(nil)
