package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/solebound/api/internal/platform/httpx"
	"github.com/solebound/api/internal/services"
)

// ProductHandlers exposes the public catalog endpoints.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs handlers around the catalog service.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	listQuery := services.ProductListQuery{}

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		listQuery.Query = &q
	}
	if brand := strings.TrimSpace(query.Get("brand")); brand != "" {
		listQuery.Brand = &brand
	}
	if style := strings.TrimSpace(query.Get("style")); style != "" {
		listQuery.Style = &style
	}
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "size must be an integer", http.StatusBadRequest))
			return
		}
		listQuery.Size = &size
	}
	if raw := strings.TrimSpace(query.Get("min_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_price must be a number", http.StatusBadRequest))
			return
		}
		listQuery.MinPrice = &price
	}
	if raw := strings.TrimSpace(query.Get("max_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "max_price must be a number", http.StatusBadRequest))
			return
		}
		listQuery.MaxPrice = &price
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
			return
		}
		listQuery.Limit = limit
	}

	result, err := h.catalog.ListProducts(ctx, listQuery)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(result.Items))
	for _, product := range result.Items {
		items = append(items, buildProductPayload(product))
	}

	writeJSONResponse(w, http.StatusOK, productListResponse{Items: items, Count: result.Count})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))

	detail, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := productDetailPayload{
		productPayload: buildProductPayload(detail.Product),
		Reviews:        buildReviewPayloads(detail.Reviews),
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}

type productListResponse struct {
	Items []productPayload `json:"items"`
	Count int              `json:"count"`
}

type productPayload struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Brand       string         `json:"brand"`
	Description string         `json:"description,omitempty"`
	Price       float64        `json:"price"`
	Sizes       []int          `json:"sizes"`
	Style       string         `json:"style,omitempty"`
	Images      []string       `json:"images"`
	InStock     bool           `json:"in_stock"`
	StockBySize map[string]int `json:"stock_by_size,omitempty"`
	Rating      ratingPayload  `json:"rating"`
	Tags        []string       `json:"tags"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

type ratingPayload struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type productDetailPayload struct {
	productPayload
	Reviews []reviewPayload `json:"reviews"`
}

type reviewPayload struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"product_id"`
	UserID     *string `json:"user_id,omitempty"`
	Rating     int     `json:"rating"`
	Comment    *string `json:"comment,omitempty"`
	AuthorName *string `json:"author_name,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	sizes := product.Sizes
	if sizes == nil {
		sizes = []int{}
	}
	images := product.Images
	if images == nil {
		images = []string{}
	}
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}

	return productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Brand:       product.Brand,
		Description: product.Description,
		Price:       product.Price,
		Sizes:       sizes,
		Style:       product.Style,
		Images:      images,
		InStock:     product.InStock,
		StockBySize: product.StockBySize,
		Rating: ratingPayload{
			Average: product.Rating.Average,
			Count:   product.Rating.Count,
		},
		Tags:      tags,
		CreatedAt: formatTime(product.CreatedAt),
		UpdatedAt: formatTime(product.UpdatedAt),
	}
}

func buildReviewPayloads(reviews []services.Review) []reviewPayload {
	payload := make([]reviewPayload, 0, len(reviews))
	for _, review := range reviews {
		payload = append(payload, buildReviewPayload(review))
	}
	return payload
}

func buildReviewPayload(review services.Review) reviewPayload {
	return reviewPayload{
		ID:         review.ID,
		ProductID:  review.ProductID,
		UserID:     cloneStringPointer(review.UserID),
		Rating:     review.Rating,
		Comment:    cloneStringPointer(review.Comment),
		AuthorName: cloneStringPointer(review.AuthorName),
		CreatedAt:  formatTime(review.CreatedAt),
	}
}
