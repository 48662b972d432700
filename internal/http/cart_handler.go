package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/slime-shop/internal/cart"
	"github.com/fjod/slime-shop/internal/catalog"
	"github.com/fjod/slime-shop/internal/checkout"
	"github.com/fjod/slime-shop/internal/domain"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/go-chi/chi/v5"
)

const maxQuantity = 99

// CartProvider returns the cart of a session.
type CartProvider interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

type CartHandler struct {
	carts   CartProvider
	catalog catalog.Catalog
	timeout time.Duration
}

func NewCartHandler(carts CartProvider, cat catalog.Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: cat,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Lines            []domain.CartLine `json:"lines"`
	ItemCount        int               `json:"item_count"`
	Total            string            `json:"total"`
	IsPanelOpen      bool              `json:"is_panel_open"`
	IsAnimating      bool              `json:"is_animating"`
	LastAddedProduct *domain.Product   `json:"last_added_product,omitempty"`
	Phase            string            `json:"phase"`
}

func toCartResponse(s *cart.Store) CartResponseDTO {
	state := s.Snapshot()
	return CartResponseDTO{
		Lines:            state.Lines,
		ItemCount:        state.ItemCount,
		Total:            checkout.FormatPrice(domain.Total(state.Lines)),
		IsPanelOpen:      state.IsPanelOpen,
		IsAnimating:      state.IsAnimating,
		LastAddedProduct: state.LastAddedProduct,
		Phase:            s.Phase().String(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := loadCart(ctx, w, r, h.carts)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, ok := h.lookupProduct(ctx, w, req.ProductID)
	if !ok {
		return
	}

	store, ok := loadCart(ctx, w, r, h.carts)
	if !ok {
		return
	}
	if !store.AddToCartWithin(ctx, product.CartProduct(), req.Quantity, product.Inventory) {
		respondErrorDetails(w, http.StatusConflict, "insufficient_inventory",
			"not enough stock for "+product.Name, "requested quantity exceeds available inventory")
		return
	}
	respondJSON(w, http.StatusCreated, toCartResponse(store))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	store, ok := loadCart(ctx, w, r, h.carts)
	if !ok {
		return
	}
	if current := store.Quantity(productID); current > 0 && req.Quantity > current {
		product, ok := h.lookupProduct(ctx, w, productID)
		if !ok {
			return
		}
		if req.Quantity > product.Inventory {
			respondErrorDetails(w, http.StatusConflict, "insufficient_inventory",
				"not enough stock for "+product.Name, "requested quantity exceeds available inventory")
			return
		}
	}

	// quantity <= 0 removes the line
	store.UpdateQuantity(ctx, productID, req.Quantity)
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := loadCart(ctx, w, r, h.carts)
	if !ok {
		return
	}
	store.RemoveFromCart(ctx, chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := loadCart(ctx, w, r, h.carts)
	if !ok {
		return
	}
	store.ClearCart(ctx)
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

// POST /api/v1/cart/toggle
func (h *CartHandler) TogglePanel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := loadCart(ctx, w, r, h.carts)
	if !ok {
		return
	}
	store.ToggleCart()
	respondJSON(w, http.StatusOK, toCartResponse(store))
}

func loadCart(ctx context.Context, w http.ResponseWriter, r *http.Request, carts CartProvider) (*cart.Store, bool) {
	store, err := carts.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		logger.FromContext(ctx, nil).Error("cart load error", "error", err)
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart is temporarily unavailable")
		return nil, false
	}
	return store, true
}

func (h *CartHandler) lookupProduct(ctx context.Context, w http.ResponseWriter, id string) (*catalog.Product, bool) {
	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "product not found")
			return nil, false
		}
		logger.FromContext(ctx, nil).Error("catalog lookup error", "product_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return nil, false
	}
	return product, true
}
