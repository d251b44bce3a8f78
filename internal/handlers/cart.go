package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/platform/httpx"
	"github.com/solebound/api/internal/services"
)

const maxCartBodySize = 16 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// CartHandlers exposes cart endpoints keyed by an (owner_type, owner_id)
// descriptor supplied by the caller.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs handlers around the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Post("/add", h.addItem)
	r.Post("/remove", h.removeItem)
	r.Post("/clear", h.clearCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	owner := cartOwner(query.Get("owner_type"), query.Get("owner_id"))

	view, err := h.carts.Get(ctx, owner)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildCartView(view))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req addCartItemRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	cmd := services.AddCartItemCommand{
		Owner: cartOwner(req.Owner.OwnerType, req.Owner.OwnerID),
		Item: services.CartItem{
			ProductID: strings.TrimSpace(req.Item.ProductID),
			Name:      strings.TrimSpace(req.Item.Name),
			Price:     req.Item.Price,
			Size:      req.Item.Size,
			Quantity:  req.Item.Quantity,
			Image:     req.Item.Image,
		},
	}

	cart, err := h.carts.Add(ctx, cmd)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartMutationResponse{ID: cart.ID})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req removeCartItemRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	// product_id and size travel as query parameters; the body carries them
	// only as a fallback.
	query := r.URL.Query()
	productID := strings.TrimSpace(query.Get("product_id"))
	if productID == "" {
		productID = strings.TrimSpace(req.ProductID)
	}

	size := 0
	sizeSet := false
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "size must be an integer", http.StatusBadRequest))
			return
		}
		size = parsed
		sizeSet = true
	} else if req.Size != nil {
		size = *req.Size
		sizeSet = true
	}

	if productID == "" || !sizeSet {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product_id and size are required", http.StatusBadRequest))
		return
	}

	cmd := services.RemoveCartItemCommand{
		Owner:     cartOwner(req.OwnerType, req.OwnerID),
		ProductID: productID,
		Size:      size,
	}

	if _, err := h.carts.Remove(ctx, cmd); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartOKResponse{OK: true})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req clearCartRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	if err := h.carts.Clear(ctx, cartOwner(req.OwnerType, req.OwnerID)); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartOKResponse{OK: true})
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

type cartOwnerRequest struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
}

type cartItemRequest struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Size      int     `json:"size"`
	Quantity  int     `json:"qty"`
	Image     *string `json:"image"`
}

type addCartItemRequest struct {
	Owner cartOwnerRequest `json:"owner"`
	Item  cartItemRequest  `json:"item"`
}

type removeCartItemRequest struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	ProductID string `json:"product_id"`
	Size      *int   `json:"size"`
}

type clearCartRequest struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
}

type cartMutationResponse struct {
	ID string `json:"id"`
}

type cartOKResponse struct {
	OK bool `json:"ok"`
}

type cartViewResponse struct {
	ID        string            `json:"id,omitempty"`
	OwnerType string            `json:"owner_type"`
	OwnerID   string            `json:"owner_id"`
	Items     []cartItemPayload `json:"items"`
	Total     float64           `json:"total"`
	CreatedAt string            `json:"created_at,omitempty"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Size      int     `json:"size"`
	Quantity  int     `json:"qty"`
	Image     *string `json:"image,omitempty"`
}

func buildCartView(view services.CartView) cartViewResponse {
	return cartViewResponse{
		ID:        strings.TrimSpace(view.ID),
		OwnerType: string(view.Owner.Type),
		OwnerID:   view.Owner.ID,
		Items:     buildCartItems(view.Items),
		Total:     view.Total,
		CreatedAt: formatTime(view.CreatedAt),
		UpdatedAt: formatTime(view.UpdatedAt),
	}
}

func buildCartItems(items []services.CartItem) []cartItemPayload {
	if len(items) == 0 {
		return []cartItemPayload{}
	}
	payload := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, cartItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Image:     cloneStringPointer(item.Image),
		})
	}
	return payload
}

func cartOwner(ownerType, ownerID string) services.CartOwner {
	return services.CartOwner{
		Type: domain.OwnerType(strings.ToLower(strings.TrimSpace(ownerType))),
		ID:   strings.TrimSpace(ownerID),
	}
}

// decodeJSONBody reads a bounded request body into dst and writes the error
// response itself when decoding fails.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxCartBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}
