package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solebound/api/internal/platform/httpx"
	"github.com/solebound/api/internal/services"
)

// SeedHandlers exposes the sample-data loading endpoint.
type SeedHandlers struct {
	seed services.SeedService
}

// NewSeedHandlers constructs handlers around the seed service.
func NewSeedHandlers(seed services.SeedService) *SeedHandlers {
	return &SeedHandlers{seed: seed}
}

// Routes registers the /seed endpoint.
func (h *SeedHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.seedProducts)
}

func (h *SeedHandlers) seedProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.seed == nil {
		httpx.WriteError(ctx, w, httpx.NewError("seed_service_unavailable", "seed service is unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := h.seed.SeedProducts(ctx)
	if err != nil {
		writeSeedError(ctx, w, err)
		return
	}

	if result.Existing > 0 {
		writeJSONResponse(w, http.StatusOK, seedSkippedResponse{
			Message: result.Message,
			Count:   result.Existing,
		})
		return
	}

	ids := result.IDs
	if ids == nil {
		ids = []string{}
	}
	writeJSONResponse(w, http.StatusOK, seedInsertedResponse{
		Inserted: result.Inserted,
		IDs:      ids,
	})
}

func writeSeedError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrSeedUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("seed_service_unavailable", "seed service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("seed_error", "failed to seed products", http.StatusInternalServerError))
	}
}

type seedInsertedResponse struct {
	Inserted int      `json:"inserted"`
	IDs      []string `json:"ids"`
}

type seedSkippedResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}
