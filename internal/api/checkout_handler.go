package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gostore/marketplace/internal/domain"
)

type CheckoutService interface {
	Checkout(ctx context.Context, userID string, address domain.Address, paymentMethod string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkouts CheckoutService
}

func NewCheckoutHandler(checkouts CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts}
}

type checkoutRequest struct {
	ShippingAddress domain.Address `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ShippingAddress.AddressLine == "" || req.ShippingAddress.City == "" {
		respondError(w, http.StatusBadRequest, "invalid_address", "shipping address is incomplete")
		return
	}
	if req.PaymentMethod == "" {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", "payment method is required")
		return
	}

	order, err := h.checkouts.Checkout(r.Context(), userID, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}
