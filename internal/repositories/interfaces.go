package repositories

import (
	"context"
	"time"

	domain "github.com/solebound/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Reviews() ReviewRepository
	Carts() CartRepository
	Orders() OrderRepository
	PromoCodes() PromoCodeRepository
	Diagnostics() DiagnosticsRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository persists product documents and their denormalised rating summaries.
type CatalogRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
	Count(ctx context.Context) (int64, error)
	UpdateRating(ctx context.Context, productID string, rating domain.RatingSummary, updatedAt time.Time) error
}

// ReviewRepository stores product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
}

// CartRepository owns cart persistence keyed by owner, with optimistic locking on
// writes so concurrent mutations of the same cart cannot clobber each other.
type CartRepository interface {
	// FindByOwner loads the live cart for the owner. Returns a RepositoryError
	// with IsNotFound when the owner has no cart.
	FindByOwner(ctx context.Context, owner domain.CartOwner) (domain.Cart, error)
	// Upsert writes the full cart document. When expectedUpdate is non-nil the
	// write is guarded by the document's last update time and surfaces a
	// RepositoryError with IsConflict on mismatch.
	Upsert(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error)
	Delete(ctx context.Context, owner domain.CartOwner) error
}

// OrderRepository persists order documents and provides the user-facing history query.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// PromoCodeRepository resolves promotion codes managed out of band.
type PromoCodeRepository interface {
	// FindActiveByCode matches the stored code exactly (case sensitive) and only
	// returns active documents. Returns a RepositoryError with IsNotFound when no
	// active code matches.
	FindActiveByCode(ctx context.Context, code string) (domain.PromoCode, error)
}

// DiagnosticsRepository probes datastore connectivity for the diagnostics endpoint.
type DiagnosticsRepository interface {
	Collect(ctx context.Context) (domain.DiagnosticsReport, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// ProductListFilter narrows catalog listings. Query applies a case-insensitive
// substring match across name, brand, description, and tags after the backend
// filters run.
type ProductListFilter struct {
	Query       *string
	Brand       *string
	Style       *string
	Size        *int
	MinPrice    *float64
	MaxPrice    *float64
	InStockOnly bool
	Limit       int
}

// OrderListFilter selects orders for history listings, newest first.
type OrderListFilter struct {
	UserID     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
