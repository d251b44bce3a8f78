package services

import (
	"context"
	"time"

	domain "github.com/solebound/api/internal/domain"
)

// Type aliases re-export domain models so handlers and DI wiring can depend on
// the services package alone.
type (
	Pagination         = domain.Pagination
	CartOwner          = domain.CartOwner
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	Product            = domain.Product
	RatingSummary      = domain.RatingSummary
	Review             = domain.Review
	Order              = domain.Order
	OrderPayment       = domain.OrderPayment
	OrderTracking      = domain.OrderTracking
	Address            = domain.Address
	PromoCode          = domain.PromoCode
	SystemHealthReport = domain.SystemHealthReport
	DiagnosticsReport  = domain.DiagnosticsReport
)

// CatalogService serves product listings and single-product reads.
type CatalogService interface {
	ListProducts(ctx context.Context, query ProductListQuery) (ProductListResult, error)
	GetProduct(ctx context.Context, productID string) (ProductDetail, error)
}

// CartService owns mutable cart state: merge-on-add, line removal, clearing,
// and reads with derived totals.
type CartService interface {
	Add(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	Remove(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	Clear(ctx context.Context, owner CartOwner) error
	Get(ctx context.Context, owner CartOwner) (CartView, error)
}

// PromotionService resolves promo codes into discount amounts.
type PromotionService interface {
	Evaluate(ctx context.Context, cmd EvaluatePromotionCommand) (PromotionResult, error)
}

// CheckoutService converts a cart into a confirmed, paid order.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// ReviewService persists reviews and keeps per-product rating summaries current.
type ReviewService interface {
	Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error)
}

// OrderService exposes order history reads.
type OrderService interface {
	ListOrders(ctx context.Context, query OrderHistoryQuery) (domain.CursorPage[Order], error)
}

// SeedService loads the sample catalog on demand.
type SeedService interface {
	SeedProducts(ctx context.Context) (SeedResult, error)
}

// SystemService aggregates dependency health and datastore diagnostics.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	Diagnostics(ctx context.Context) (DiagnosticsReport, error)
}

// OrderEventPublisher delivers order lifecycle notifications to the event
// stream. Publishing is best effort; a broker outage never fails the request.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// ReviewEventPublisher delivers review notifications to the event stream.
type ReviewEventPublisher interface {
	PublishReviewEvent(ctx context.Context, message ReviewEventMessage) (string, error)
}

// OrderEventMessage is the payload published once checkout confirms an order.
type OrderEventMessage struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId,omitempty"`
	TotalAmount float64   `json:"totalAmount"`
	Status      string    `json:"status"`
	ItemCount   int       `json:"itemCount"`
	PromoCode   string    `json:"promoCode,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// ReviewEventMessage is the payload published after a review lands and the
// product rating has been recomputed.
type ReviewEventMessage struct {
	Type          string    `json:"type"`
	ReviewID      string    `json:"reviewId"`
	ProductID     string    `json:"productId"`
	Rating        int       `json:"rating"`
	RatingAverage float64   `json:"ratingAverage"`
	RatingCount   int       `json:"ratingCount"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// ProductListQuery carries catalog listing filters. Nil pointers mean the
// filter is absent.
type ProductListQuery struct {
	Query    *string
	Brand    *string
	Style    *string
	Size     *int
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

// ProductListResult is a bounded page of in-stock products.
type ProductListResult struct {
	Items []Product
	Count int
}

// ProductDetail pairs a product with its reviews for the detail endpoint.
type ProductDetail struct {
	Product
	Reviews []Review
}

// AddCartItemCommand adds one line to the owner's cart.
type AddCartItemCommand struct {
	Owner CartOwner
	Item  CartItem
}

// RemoveCartItemCommand drops the line matching product and size.
type RemoveCartItemCommand struct {
	Owner     CartOwner
	ProductID string
	Size      int
}

// CartView pairs cart state with its derived total for read endpoints.
type CartView struct {
	Cart
	Total float64
}

// EvaluatePromotionCommand asks for the discount a code grants on a subtotal.
type EvaluatePromotionCommand struct {
	Code     string
	Subtotal float64
}

// PromotionResult reports the discount resolved for a code. Applied is false
// when the code was unknown or inactive.
type PromotionResult struct {
	Code     string
	Discount float64
	Applied  bool
}

// CheckoutCommand carries everything checkout needs beyond the stored cart.
type CheckoutCommand struct {
	Owner           CartOwner
	UserID          *string
	ShippingAddress *Address
	PaymentMethod   *string
	PromoCode       *string
}

// CheckoutResult reports the confirmed order.
type CheckoutResult struct {
	OrderID string
	Status  domain.OrderStatus
}

// SubmitReviewCommand carries a review submission.
type SubmitReviewCommand struct {
	ProductID  string
	UserID     *string
	Rating     int
	Comment    *string
	AuthorName *string
}

// OrderHistoryQuery filters and pages the order history listing.
type OrderHistoryQuery struct {
	UserID    string
	DateRange domain.RangeQuery[time.Time]
	Limit     int
	PageToken string
}

// SeedResult reports the outcome of a seeding run. When products already
// exist nothing is inserted and Existing carries the current count.
type SeedResult struct {
	Inserted int
	IDs      []string
	Existing int64
	Message  string
}
