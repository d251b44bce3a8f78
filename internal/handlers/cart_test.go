package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/services"
)

type stubCartService struct {
	addFn    func(context.Context, services.AddCartItemCommand) (services.Cart, error)
	removeFn func(context.Context, services.RemoveCartItemCommand) (services.Cart, error)
	clearFn  func(context.Context, services.CartOwner) error
	getFn    func(context.Context, services.CartOwner) (services.CartView, error)
}

func (s *stubCartService) Add(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) Remove(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) Clear(ctx context.Context, owner services.CartOwner) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, owner)
	}
	return errors.New("not implemented")
}

func (s *stubCartService) Get(ctx context.Context, owner services.CartOwner) (services.CartView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, owner)
	}
	return services.CartView{}, errors.New("not implemented")
}

func newCartRouter(service services.CartService) chi.Router {
	handler := NewCartHandlers(service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)
	return router
}

func TestCartHandlersGetCartSuccess(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
	image := "shoes/airflex.png"

	var capturedOwner services.CartOwner
	service := &stubCartService{
		getFn: func(ctx context.Context, owner services.CartOwner) (services.CartView, error) {
			capturedOwner = owner
			return services.CartView{
				Cart: services.Cart{
					ID:    "cart-1",
					Owner: owner,
					Items: []services.CartItem{
						{ProductID: "prod-1", Name: "AirFlex Runner", Price: 49.5, Size: 9, Quantity: 2, Image: &image},
					},
					CreatedAt: now,
					UpdatedAt: now,
				},
				Total: 99,
			}, nil
		},
	}

	router := newCartRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/cart?owner_type=session&owner_id=sess-9", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedOwner.Type != domain.OwnerTypeSession || capturedOwner.ID != "sess-9" {
		t.Fatalf("unexpected owner %+v", capturedOwner)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["id"] != "cart-1" {
		t.Fatalf("expected cart id cart-1, got %v", body["id"])
	}
	if body["owner_type"] != "session" || body["owner_id"] != "sess-9" {
		t.Fatalf("unexpected owner fields: %v", body)
	}
	if body["total"] != float64(99) {
		t.Fatalf("expected total 99, got %v", body["total"])
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one item, got %v", body["items"])
	}
	item := items[0].(map[string]any)
	if item["qty"] != float64(2) || item["size"] != float64(9) {
		t.Fatalf("unexpected item payload: %v", item)
	}
	if item["image"] != image {
		t.Fatalf("expected image %q, got %v", image, item["image"])
	}
}

func TestCartHandlersGetCartAbsentCartReadsEmpty(t *testing.T) {
	service := &stubCartService{
		getFn: func(ctx context.Context, owner services.CartOwner) (services.CartView, error) {
			return services.CartView{
				Cart:  services.Cart{Owner: owner, Items: []services.CartItem{}},
				Total: 0,
			}, nil
		},
	}

	router := newCartRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/cart?owner_type=user&owner_id=user-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if _, hasID := body["id"]; hasID {
		t.Fatalf("expected no cart id for an absent cart, got %v", body["id"])
	}
	if items, ok := body["items"].([]any); !ok || len(items) != 0 {
		t.Fatalf("expected empty items array, got %v", body["items"])
	}
	if body["total"] != float64(0) {
		t.Fatalf("expected total 0, got %v", body["total"])
	}
}

func TestCartHandlersGetCartInvalidOwner(t *testing.T) {
	service := &stubCartService{
		getFn: func(ctx context.Context, owner services.CartOwner) (services.CartView, error) {
			return services.CartView{}, fmt.Errorf("%w: owner id is required", services.ErrCartInvalidInput)
		},
	}

	router := newCartRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/cart?owner_type=session", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "invalid_request" {
		t.Fatalf("expected invalid_request error, got %v", body["error"])
	}
}

func TestCartHandlersAddItemSuccess(t *testing.T) {
	var captured services.AddCartItemCommand
	service := &stubCartService{
		addFn: func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{ID: "cart-42"}, nil
		},
	}

	router := newCartRouter(service)

	payload := `{"owner":{"owner_type":"user","owner_id":"user-3"},"item":{"product_id":"prod-9","name":"CloudStride Pro","price":109.0,"size":8,"qty":2,"image":"https://cdn.example.com/cloudstride.jpg"}}`
	req := httptest.NewRequest(http.MethodPost, "/cart/add", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Owner.Type != domain.OwnerTypeUser || captured.Owner.ID != "user-3" {
		t.Fatalf("unexpected owner %+v", captured.Owner)
	}
	if captured.Item.ProductID != "prod-9" || captured.Item.Size != 8 || captured.Item.Quantity != 2 {
		t.Fatalf("unexpected item %+v", captured.Item)
	}
	if captured.Item.Image == nil || *captured.Item.Image != "https://cdn.example.com/cloudstride.jpg" {
		t.Fatalf("expected image pointer, got %v", captured.Item.Image)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["id"] != "cart-42" {
		t.Fatalf("expected cart id cart-42, got %v", body["id"])
	}
}

func TestCartHandlersAddItemBadBody(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	cases := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"owner":`},
		{name: "empty body", body: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cart/add", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestCartHandlersRemoveItemQueryParams(t *testing.T) {
	var captured services.RemoveCartItemCommand
	service := &stubCartService{
		removeFn: func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{ID: "cart-1"}, nil
		},
	}

	router := newCartRouter(service)

	body := `{"owner_type":"session","owner_id":"sess-2"}`
	req := httptest.NewRequest(http.MethodPost, "/cart/remove?product_id=prod-1&size=9", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.ProductID != "prod-1" || captured.Size != 9 {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Owner.Type != domain.OwnerTypeSession || captured.Owner.ID != "sess-2" {
		t.Fatalf("unexpected owner %+v", captured.Owner)
	}

	var body2 map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body2); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body2["ok"] != true {
		t.Fatalf("expected ok true, got %v", body2["ok"])
	}
}

func TestCartHandlersRemoveItemBodyFallback(t *testing.T) {
	var captured services.RemoveCartItemCommand
	service := &stubCartService{
		removeFn: func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{ID: "cart-1"}, nil
		},
	}

	router := newCartRouter(service)

	body := `{"owner_type":"user","owner_id":"user-5","product_id":"prod-2","size":10}`
	req := httptest.NewRequest(http.MethodPost, "/cart/remove", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.ProductID != "prod-2" || captured.Size != 10 {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestCartHandlersRemoveItemMissingSelector(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	body := `{"owner_type":"user","owner_id":"user-5"}`
	req := httptest.NewRequest(http.MethodPost, "/cart/remove", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCartHandlersRemoveItemCartNotFound(t *testing.T) {
	service := &stubCartService{
		removeFn: func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
			return services.Cart{}, fmt.Errorf("%w: no cart for owner", services.ErrCartNotFound)
		},
	}

	router := newCartRouter(service)

	body := `{"owner_type":"session","owner_id":"sess-404","product_id":"prod-1","size":9}`
	req := httptest.NewRequest(http.MethodPost, "/cart/remove", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body2 map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body2); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body2["error"] != "cart_not_found" {
		t.Fatalf("expected cart_not_found error, got %v", body2["error"])
	}
}

func TestCartHandlersClearCartSuccess(t *testing.T) {
	var capturedOwner services.CartOwner
	service := &stubCartService{
		clearFn: func(ctx context.Context, owner services.CartOwner) error {
			capturedOwner = owner
			return nil
		},
	}

	router := newCartRouter(service)

	body := `{"owner_type":"session","owner_id":"sess-7"}`
	req := httptest.NewRequest(http.MethodPost, "/cart/clear", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedOwner.ID != "sess-7" {
		t.Fatalf("unexpected owner %+v", capturedOwner)
	}

	var body2 map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body2); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body2["ok"] != true {
		t.Fatalf("expected ok true, got %v", body2["ok"])
	}
}

func TestCartHandlersServiceMissing(t *testing.T) {
	router := newCartRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/cart?owner_type=user&owner_id=u1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
