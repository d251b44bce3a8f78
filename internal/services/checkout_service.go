package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/payments"
	"github.com/solebound/api/internal/repositories"
)

const orderEventConfirmed = "order.confirmed"

var (
	// ErrCheckoutEmptyCart indicates checkout ran against a missing or empty cart.
	ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")
	// ErrCheckoutInvalidInput indicates the caller supplied malformed checkout input.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrCheckoutConflict indicates a write collided with concurrent state.
	ErrCheckoutConflict = errors.New("checkout service: conflicting state")
	// ErrCheckoutUnavailable indicates a checkout dependency cannot be reached.
	ErrCheckoutUnavailable = errors.New("checkout service: backend unavailable")
)

// promotionEvaluator narrows PromotionService to the discount step checkout needs.
type promotionEvaluator interface {
	Evaluate(ctx context.Context, cmd EvaluatePromotionCommand) (PromotionResult, error)
}

// paymentCharger abstracts the payment manager for testing.
type paymentCharger interface {
	Charge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error)
}

// CheckoutServiceDeps bundles the collaborators checkout depends on. Events
// and Logger are optional.
type CheckoutServiceDeps struct {
	Carts       repositories.CartRepository
	Orders      repositories.OrderRepository
	Promotions  promotionEvaluator
	Payments    paymentCharger
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	carts      repositories.CartRepository
	orders     repositories.OrderRepository
	promotions promotionEvaluator
	payments   paymentCharger
	events     OrderEventPublisher
	now        func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs a CheckoutService after validating required
// dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("checkout service: promotion evaluator is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	generator := deps.IDGenerator
	if generator == nil {
		generator = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		carts:      deps.Carts,
		orders:     deps.Orders,
		promotions: deps.Promotions,
		payments:   deps.Payments,
		events:     deps.Events,
		now:        func() time.Time { return clock().UTC() },
		newID:      generator,
		logger:     logger,
	}, nil
}

var _ CheckoutService = (*checkoutService)(nil)

// Checkout runs the cart to order sequence: load the cart, price it, apply
// any promo discount, persist the order as processing, charge the payment,
// mark the order confirmed and paid, then clear the cart. The cart survives
// any failure before the order write; once the order is confirmed, cart
// cleanup and event publishing are best effort.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if s == nil || s.carts == nil || s.orders == nil || s.payments == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	owner, err := normalizeOwner(cmd.Owner, ErrCheckoutInvalidInput)
	if err != nil {
		return CheckoutResult{}, err
	}

	cart, err := s.carts.FindByOwner(ctx, owner)
	if err != nil {
		if isRepoNotFound(err) {
			return CheckoutResult{}, ErrCheckoutEmptyCart
		}
		return CheckoutResult{}, s.translateRepoError(err)
	}
	if len(cart.Items) == 0 {
		return CheckoutResult{}, ErrCheckoutEmptyCart
	}

	subtotal := itemsSubtotal(cart.Items)

	var promoCode string
	if cmd.PromoCode != nil {
		promoCode = strings.TrimSpace(*cmd.PromoCode)
	}
	var discount float64
	if promoCode != "" {
		result, evalErr := s.promotions.Evaluate(ctx, EvaluatePromotionCommand{Code: promoCode, Subtotal: subtotal})
		if evalErr != nil {
			return CheckoutResult{}, ErrCheckoutUnavailable
		}
		discount = result.Discount
	}

	total := roundAmount(max(0, subtotal-discount))

	now := s.now()
	order := domain.Order{
		ID:              s.newID(),
		UserID:          trimStringPointer(cmd.UserID),
		Items:           cloneCartItems(cart.Items),
		TotalAmount:     total,
		Status:          domain.OrderStatusProcessing,
		ShippingAddress: cloneAddress(cmd.ShippingAddress),
		Payment: domain.OrderPayment{
			Method: trimStringPointer(cmd.PaymentMethod),
			Status: domain.PaymentStatusPending,
		},
		Tracking: domain.OrderTracking{
			Status: domain.TrackingStatusProcessing,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return CheckoutResult{}, s.translateRepoError(err)
	}

	charge, err := s.payments.Charge(ctx, payments.ChargeRequest{
		OrderID: order.ID,
		Amount:  order.TotalAmount,
		Method:  stringValue(order.Payment.Method),
		UserID:  order.UserID,
	})
	if err != nil {
		// The order stays in processing; a retry or operator action settles it.
		s.logger(ctx, "checkout.charge_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return CheckoutResult{}, ErrCheckoutUnavailable
	}

	transactionID := charge.TransactionID
	confirmed := order
	confirmed.Status = domain.OrderStatusConfirmed
	confirmed.Payment = domain.OrderPayment{
		Method:        order.Payment.Method,
		Status:        domain.PaymentStatus(charge.Status),
		TransactionID: &transactionID,
	}
	confirmed.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, confirmed); err != nil {
		s.logger(ctx, "checkout.confirm_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return CheckoutResult{}, s.translateRepoError(err)
	}

	if err := s.carts.Delete(ctx, owner); err != nil && !isRepoNotFound(err) {
		// The confirmed order stands; an orphaned cart is the accepted window.
		s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
			"orderId":   confirmed.ID,
			"ownerType": string(owner.Type),
			"ownerId":   owner.ID,
			"error":     err.Error(),
		})
	}

	s.publishOrderConfirmed(ctx, confirmed, promoCode)

	return CheckoutResult{OrderID: confirmed.ID, Status: confirmed.Status}, nil
}

func (s *checkoutService) publishOrderConfirmed(ctx context.Context, order domain.Order, promoCode string) {
	if s.events == nil {
		return
	}
	message := OrderEventMessage{
		Type:        orderEventConfirmed,
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		ItemCount:   len(order.Items),
		PromoCode:   promoCode,
		OccurredAt:  s.now(),
	}
	if order.UserID != nil {
		message.UserID = *order.UserID
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "checkout.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *checkoutService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsConflict():
			return ErrCheckoutConflict
		case repoErr.IsUnavailable():
			return ErrCheckoutUnavailable
		}
	}
	return ErrCheckoutUnavailable
}

func cloneAddress(address *domain.Address) *domain.Address {
	if address == nil {
		return nil
	}
	dup := *address
	return &dup
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
