package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/slime-shop/internal/catalog"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	catalog catalog.Catalog
	timeout time.Duration
}

func NewProductHandler(cat catalog.Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: cat, timeout: timeout}
}

// GET /api/v1/products?category=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx, r.URL.Query().Get("category"))
	if err != nil {
		logger.FromContext(ctx, nil).Error("list products error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		logger.FromContext(ctx, nil).Error("get product error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, product)
}
