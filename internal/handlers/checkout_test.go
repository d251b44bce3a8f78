package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/services"
)

func newCheckoutRouter(service services.CheckoutService) chi.Router {
	handler := NewCheckoutHandlers(service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)
	return router
}

func TestCheckoutHandlersCheckoutSuccess(t *testing.T) {
	var captured services.CheckoutCommand
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			captured = cmd
			return services.CheckoutResult{OrderID: "order-88", Status: domain.OrderStatusConfirmed}, nil
		},
	}

	router := newCheckoutRouter(service)

	payload := `{
		"owner_type": "user",
		"owner_id": "user-5",
		"user_id": "user-5",
		"payment_method": "card",
		"promo_code": "WELCOME10",
		"shipping_address": {
			"name": "Dana Lane",
			"line1": "12 Harbor Way",
			"city": "Portland",
			"state": "OR",
			"postal_code": "97201",
			"country": "US"
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	if captured.Owner.Type != "user" || captured.Owner.ID != "user-5" {
		t.Fatalf("unexpected owner %+v", captured.Owner)
	}
	if captured.UserID == nil || *captured.UserID != "user-5" {
		t.Fatalf("expected user id user-5, got %v", captured.UserID)
	}
	if captured.PaymentMethod == nil || *captured.PaymentMethod != "card" {
		t.Fatalf("expected payment method card, got %v", captured.PaymentMethod)
	}
	if captured.PromoCode == nil || *captured.PromoCode != "WELCOME10" {
		t.Fatalf("expected promo code WELCOME10, got %v", captured.PromoCode)
	}
	if captured.ShippingAddress == nil || captured.ShippingAddress.City != "Portland" {
		t.Fatalf("expected shipping address propagated, got %+v", captured.ShippingAddress)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["order_id"] != "order-88" {
		t.Fatalf("expected order_id order-88, got %v", body["order_id"])
	}
	if body["status"] != "confirmed" {
		t.Fatalf("expected status confirmed, got %v", body["status"])
	}
}

func TestCheckoutHandlersCheckoutBlankOptionalFields(t *testing.T) {
	var captured services.CheckoutCommand
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			captured = cmd
			return services.CheckoutResult{OrderID: "order-1", Status: domain.OrderStatusConfirmed}, nil
		},
	}

	router := newCheckoutRouter(service)

	payload := `{"owner_type":"session","owner_id":"sess-4","promo_code":"   "}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.PromoCode != nil {
		t.Fatalf("expected blank promo code dropped, got %v", *captured.PromoCode)
	}
	if captured.UserID != nil || captured.ShippingAddress != nil {
		t.Fatalf("expected absent optionals to stay nil, got %+v", captured)
	}
}

func TestCheckoutHandlersCheckoutEmptyCart(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(context.Context, services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{}, fmt.Errorf("%w for owner sess-4", services.ErrCheckoutEmptyCart)
		},
	}

	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"owner_type":"session","owner_id":"sess-4"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body["error"] != "cart_empty" {
		t.Fatalf("expected error code cart_empty, got %v", body["error"])
	}
}

func TestCheckoutHandlersCheckoutConflict(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(context.Context, services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{}, services.ErrCheckoutConflict
		},
	}

	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"owner_type":"user","owner_id":"user-2"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body["error"] != "checkout_conflict" {
		t.Fatalf("expected error code checkout_conflict, got %v", body["error"])
	}
}

func TestCheckoutHandlersCheckoutBadBody(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{})

	cases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"owner_type":`},
		{name: "empty body", body: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestCheckoutHandlersServiceMissing(t *testing.T) {
	router := newCheckoutRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"owner_type":"user","owner_id":"user-1"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

type stubCheckoutService struct {
	checkoutFunc func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	if s.checkoutFunc != nil {
		return s.checkoutFunc(ctx, cmd)
	}
	return services.CheckoutResult{}, errors.New("not implemented")
}
