package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solebound/api/internal/payments"
	"github.com/solebound/api/internal/platform/config"
	"github.com/solebound/api/internal/repositories"
	"github.com/solebound/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog    services.CatalogService
	Cart       services.CartService
	Promotions services.PromotionService
	Checkout   services.CheckoutService
	Reviews    services.ReviewService
	Orders     services.OrderService
	Seed       services.SeedService
	System     services.SystemService
}

// Deps carries the collaborators the repository registry cannot supply on its
// own. Payments is required for checkout; the event publishers, media signer,
// sanitizer, and logger are optional.
type Deps struct {
	Config       config.Config
	Repositories repositories.Registry
	Payments     payments.Provider
	OrderEvents  services.OrderEventPublisher
	ReviewEvents services.ReviewEventPublisher
	Media        services.MediaLinkSigner
	Sanitize     func(string) string
	Build        services.BuildInfo
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// Firestore-backed repositories, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, deps Deps) (*Container, error) {
	if deps.Repositories == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Repositories,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps Deps) (Services, error) {
	reg := deps.Repositories
	cfg := deps.Config
	var svc Services

	if catalogRepo := reg.Catalog(); catalogRepo != nil {
		catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
			Catalog:      catalogRepo,
			Reviews:      reg.Reviews(),
			Media:        deps.Media,
			DefaultLimit: cfg.Catalog.DefaultPageSize,
			MaxLimit:     cfg.Catalog.MaxPageSize,
			Logger:       deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build catalog service: %w", err)
		}
		svc.Catalog = catalogSvc
	}

	if cartRepo := reg.Carts(); cartRepo != nil {
		cartSvc, err := services.NewCartService(services.CartServiceDeps{
			Repository: cartRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Cart = cartSvc
	}

	if cfg.Features.EnablePromotions {
		if promoRepo := reg.PromoCodes(); promoRepo != nil {
			promoSvc, err := services.NewPromotionService(services.PromotionServiceDeps{
				Repository: promoRepo,
			})
			if err != nil {
				return Services{}, fmt.Errorf("build promotion service: %w", err)
			}
			svc.Promotions = promoSvc
		}
	}
	if svc.Promotions == nil {
		svc.Promotions = promotionsDisabled{}
	}

	if deps.Payments != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:      reg.Carts(),
			Orders:     reg.Orders(),
			Promotions: svc.Promotions,
			Payments:   deps.Payments,
			Events:     deps.OrderEvents,
			Clock:      time.Now,
			Logger:     deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	if reviewRepo := reg.Reviews(); reviewRepo != nil {
		reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
			Reviews:  reviewRepo,
			Catalog:  reg.Catalog(),
			Events:   deps.ReviewEvents,
			Sanitize: deps.Sanitize,
			Clock:    time.Now,
			Logger:   deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build review service: %w", err)
		}
		svc.Reviews = reviewSvc
	}

	if ordersRepo := reg.Orders(); ordersRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Repository:   ordersRepo,
			DefaultLimit: cfg.Orders.DefaultPageSize,
			MaxLimit:     cfg.Orders.MaxPageSize,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if cfg.Features.EnableSeed {
		if catalogRepo := reg.Catalog(); catalogRepo != nil {
			seedSvc, err := services.NewSeedService(services.SeedServiceDeps{
				Catalog: catalogRepo,
				Clock:   time.Now,
			})
			if err != nil {
				return Services{}, fmt.Errorf("build seed service: %w", err)
			}
			svc.Seed = seedSvc
		}
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository:      healthRepo,
			DiagnosticsRepository: reg.Diagnostics(),
			Clock:                 time.Now,
			Build:                 deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// promotionsDisabled stands in for the promotion service when the feature flag
// is off; every code evaluates to no discount.
type promotionsDisabled struct{}

func (promotionsDisabled) Evaluate(context.Context, services.EvaluatePromotionCommand) (services.PromotionResult, error) {
	return services.PromotionResult{}, nil
}

var _ services.PromotionService = promotionsDisabled{}
