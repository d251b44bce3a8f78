package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OwnerType enumerates the kinds of identities that can hold a cart.
type OwnerType string

const (
	// OwnerTypeUser marks carts held by an authenticated user account.
	OwnerTypeUser OwnerType = "user"
	// OwnerTypeSession marks carts held by an anonymous browser session.
	OwnerTypeSession OwnerType = "session"
)

// CartOwner identifies the holder of a cart as a (type, id) descriptor.
type CartOwner struct {
	Type OwnerType
	ID   string
}

// RatingSummary is the review aggregate stored on a product document.
type RatingSummary struct {
	Average float64
	Count   int
}

// Product represents a sellable item in the catalog.
type Product struct {
	ID          string
	Name        string
	Brand       string
	Description string
	Price       float64
	Sizes       []int
	Style       string
	Images      []string
	InStock     bool
	StockBySize map[string]int
	Rating      RatingSummary
	Tags        []string
	BrandKey    string
	StyleKey    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Review captures user-generated feedback associated with a product.
type Review struct {
	ID         string
	ProductID  string
	UserID     *string
	Rating     int
	Comment    *string
	AuthorName *string
	CreatedAt  time.Time
}

// CartItem is a single product+size line within a cart or order snapshot.
// Price is the snapshot captured at add time, not a live catalog value.
type CartItem struct {
	ProductID string
	Name      string
	Price     float64
	Size      int
	Quantity  int
	Image     *string
}

// Cart holds the mutable per-owner item list. At most one live cart exists
// per (owner type, owner id), and at most one item per (product, size).
type Cart struct {
	ID        string
	Owner     CartOwner
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending marks orders created but not yet priced or charged.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing marks orders created during checkout, before payment settles.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusConfirmed marks orders whose payment has been recorded.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusCancelled is a terminal state reserved for operator tooling.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus enumerates payment sub-record states.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no charge has been recorded yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates the (simulated) charge succeeded.
	PaymentStatusPaid PaymentStatus = "paid"
)

// TrackingStatusProcessing is the initial fulfilment state stamped on new orders.
const TrackingStatusProcessing = "processing"

// OrderPayment is the payment sub-record embedded in an order.
type OrderPayment struct {
	Method        *string
	Status        PaymentStatus
	TransactionID *string
}

// OrderTracking is the fulfilment sub-record embedded in an order.
type OrderTracking struct {
	Carrier        *string
	TrackingNumber *string
	Status         string
}

// Address captures a shipping destination as an explicit record.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Order is the immutable snapshot produced by checkout. Items are copied
// from the cart and decoupled from live cart and product state.
type Order struct {
	ID              string
	UserID          *string
	Items           []CartItem
	TotalAmount     float64
	Status          OrderStatus
	ShippingAddress *Address
	Payment         OrderPayment
	Tracking        OrderTracking
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DiscountType enumerates supported promo code discount modes.
type DiscountType string

const (
	// DiscountTypePercentage applies value as a percentage of the subtotal.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeAmount applies value as a flat currency amount.
	DiscountTypeAmount DiscountType = "amount"
)

// PromoCode describes promotional reference data; read-only for this service.
type PromoCode struct {
	ID           string
	Code         string
	DiscountType DiscountType
	Value        float64
	Active       bool
	Description  *string
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck records the outcome of probing a single dependency.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// DiagnosticsReport mirrors the datastore connectivity probe exposed on /test.
type DiagnosticsReport struct {
	Backend          string
	Database         string
	DatabaseName     string
	ConnectionStatus string
	Collections      []string
	GeneratedAt      time.Time
}
