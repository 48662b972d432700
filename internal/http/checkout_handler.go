package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/slime-shop/internal/checkout"
)

type CheckoutService interface {
	Guard(c checkout.Cart) (redirect string, ok bool)
	Submit(ctx context.Context, c checkout.Cart, form checkout.Form) checkout.Result
}

type CheckoutHandler struct {
	carts    CartProvider
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(carts CartProvider, svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		carts:    carts,
		checkout: svc,
		timeout:  timeout,
	}
}

type CheckoutGuardDTO struct {
	Ready    bool             `json:"ready"`
	Redirect string           `json:"redirect,omitempty"`
	Cart     *CartResponseDTO `json:"cart,omitempty"`
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Enter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := loadCart(ctx, w, r, h.carts)
	if !ok {
		return
	}
	if redirect, ok := h.checkout.Guard(store); !ok {
		respondJSON(w, http.StatusConflict, CheckoutGuardDTO{Redirect: redirect})
		return
	}
	resp := toCartResponse(store)
	respondJSON(w, http.StatusOK, CheckoutGuardDTO{Ready: true, Cart: &resp})
}

// POST /api/v1/checkout
// Side effects carry their own step timeouts. The route's own timeout is sized
// to fit all of them, see RouterConfig.CheckoutTimeout.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if err := decodeJSON(w, r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, ok := loadCart(r.Context(), w, r, h.carts)
	if !ok {
		return
	}
	res := h.checkout.Submit(r.Context(), store, form)
	respondJSON(w, statusForOutcome(res.Outcome), res)
}

func statusForOutcome(o checkout.Outcome) int {
	switch o {
	case checkout.OutcomeSuccess:
		return http.StatusCreated
	case checkout.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	case checkout.OutcomeEmptyCart:
		return http.StatusConflict
	case checkout.OutcomeBusy:
		return http.StatusTooManyRequests
	case checkout.OutcomeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
