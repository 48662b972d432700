package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/slime-shop/internal/domain"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/fjod/slime-shop/internal/orders"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	repo    orders.Repository
	timeout time.Duration
}

func NewOrdersHandler(repo orders.Repository, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		repo:    repo,
		timeout: timeout,
	}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// GET /api/v1/admin/orders?status=&email=&limit=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	filter := orders.ListFilter{
		Status: domain.OrderStatus(q.Get("status")),
		Email:  q.Get("email"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	list, err := h.repo.ListOrders(ctx, filter)
	if err != nil {
		handleOrdersError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": list})
}

// GET /api/v1/admin/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.repo.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleOrdersError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/admin/orders/{id}
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.repo.UpdateStatus(ctx, chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		handleOrdersError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func handleOrdersError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, orders.ErrInvalidStatus):
		respondErrorDetails(w, http.StatusBadRequest, "invalid_status", "unknown order status", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "order store timed out")
	default:
		logger.FromContext(ctx, nil).Error("orders repository error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
