package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solebound/api/internal/platform/httpx"
	"github.com/solebound/api/internal/services"
)

const maxReviewBodySize = 32 * 1024

// ReviewHandlers exposes the review submission endpoint.
type ReviewHandlers struct {
	reviews services.ReviewService
	limiter rateLimiter
}

type reviewConfig struct {
	limit  int
	window time.Duration
	clock  func() time.Time
}

// ReviewOption customises ReviewHandlers construction.
type ReviewOption func(*reviewConfig)

// WithReviewRateLimit throttles submissions per client IP over a fixed
// window. A zero limit or window disables throttling.
func WithReviewRateLimit(limit int, window time.Duration) ReviewOption {
	return func(cfg *reviewConfig) {
		cfg.limit = limit
		cfg.window = window
	}
}

// WithReviewRateLimitClock overrides the limiter clock, primarily for tests.
func WithReviewRateLimitClock(clock func() time.Time) ReviewOption {
	return func(cfg *reviewConfig) {
		cfg.clock = clock
	}
}

// NewReviewHandlers constructs handlers around the review service.
func NewReviewHandlers(reviews services.ReviewService, opts ...ReviewOption) *ReviewHandlers {
	cfg := reviewConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &ReviewHandlers{
		reviews: reviews,
		limiter: newFixedWindowLimiter(cfg.limit, cfg.window, cfg.clock),
	}
}

// Routes registers the /reviews endpoints.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createReview)
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil {
		if ok, retryAfter := h.limiter.Allow(clientKey(r)); !ok {
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many review submissions; slow down", http.StatusTooManyRequests))
			return
		}
	}

	var req createReviewRequest
	if !decodeJSONBody(ctx, w, r, maxReviewBodySize, &req) {
		return
	}

	cmd := services.SubmitReviewCommand{
		ProductID:  strings.TrimSpace(req.ProductID),
		UserID:     trimmedPointer(req.UserID),
		Rating:     req.Rating,
		Comment:    req.Comment,
		AuthorName: req.AuthorName,
	}

	review, err := h.reviews.Submit(ctx, cmd)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, createReviewResponse{ID: review.ID})
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("review_error", "failed to process review request", http.StatusInternalServerError))
	}
}

// clientKey buckets rate limits by client IP. middleware.RealIP has already
// folded forwarding headers into RemoteAddr when present.
func clientKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

type createReviewRequest struct {
	ProductID  string  `json:"product_id"`
	UserID     *string `json:"user_id"`
	Rating     int     `json:"rating"`
	Comment    *string `json:"comment"`
	AuthorName *string `json:"author_name"`
}

type createReviewResponse struct {
	ID string `json:"id"`
}
