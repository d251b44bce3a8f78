package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/solebound/api/internal/domain"
	"github.com/solebound/api/internal/platform/httpx"
	"github.com/solebound/api/internal/platform/pagination"
	"github.com/solebound/api/internal/services"
)

// OrderHandlers exposes order history endpoints.
type OrderHandlers struct {
	orders   services.OrderService
	pageOpts pagination.Options
}

// OrderOption customises OrderHandlers construction.
type OrderOption func(*OrderHandlers)

// WithOrderPageLimits overrides the default and maximum page sizes accepted by
// the history listing.
func WithOrderPageLimits(defaultLimit, maxLimit int) OrderOption {
	return func(h *OrderHandlers) {
		h.pageOpts = pagination.Options{DefaultLimit: defaultLimit, MaxLimit: maxLimit}
	}
}

// NewOrderHandlers constructs handlers around the order service.
func NewOrderHandlers(orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	pageParams, err := pagination.FromRequest(r, h.pageOpts)
	if err != nil {
		writeOrderPageError(ctx, w, err)
		return
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	historyQuery := services.OrderHistoryQuery{
		UserID:    strings.TrimSpace(query.Get("user_id")),
		DateRange: dateRange,
		Limit:     pageParams.Limit,
		PageToken: pageParams.PageToken,
	}

	page, err := h.orders.ListOrders(ctx, historyQuery)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}

	response := orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func writeOrderPageError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pagination.ErrInvalidLimit):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
	case errors.Is(err, pagination.ErrInvalidPageToken):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_token is not a valid cursor", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid pagination parameters", http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID              string               `json:"id"`
	UserID          *string              `json:"user_id,omitempty"`
	Items           []cartItemPayload    `json:"items"`
	TotalAmount     float64              `json:"total_amount"`
	Status          string               `json:"status"`
	ShippingAddress *addressPayload      `json:"shipping_address,omitempty"`
	Payment         orderPaymentPayload  `json:"payment"`
	Tracking        orderTrackingPayload `json:"tracking"`
	CreatedAt       string               `json:"created_at,omitempty"`
	UpdatedAt       string               `json:"updated_at,omitempty"`
}

type orderPaymentPayload struct {
	Method        *string `json:"method"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id"`
}

type orderTrackingPayload struct {
	Carrier        *string `json:"carrier"`
	TrackingNumber *string `json:"tracking_number"`
	Status         string  `json:"status"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:          order.ID,
		UserID:      cloneStringPointer(order.UserID),
		Items:       buildCartItems(order.Items),
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		Payment: orderPaymentPayload{
			Method:        cloneStringPointer(order.Payment.Method),
			Status:        string(order.Payment.Status),
			TransactionID: cloneStringPointer(order.Payment.TransactionID),
		},
		Tracking: orderTrackingPayload{
			Carrier:        cloneStringPointer(order.Tracking.Carrier),
			TrackingNumber: cloneStringPointer(order.Tracking.TrackingNumber),
			Status:         order.Tracking.Status,
		},
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}

	if order.ShippingAddress != nil {
		addr := buildAddressPayload(*order.ShippingAddress)
		payload.ShippingAddress = &addr
	}

	return payload
}
