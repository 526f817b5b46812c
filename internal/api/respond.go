package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gostore/marketplace/internal/cart"
	"github.com/gostore/marketplace/internal/cart/repository"
	"github.com/gostore/marketplace/internal/checkout"
	"github.com/gostore/marketplace/internal/coupon"
	"github.com/gostore/marketplace/internal/domain"
	"github.com/gostore/marketplace/internal/store"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}

// respondDomainError maps the domain error taxonomy onto HTTP statuses.
// Anything unrecognized is an internal failure and is not echoed back.
func respondDomainError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, repository.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart_not_found", err.Error())
	case errors.Is(err, cart.ErrItemNotInCart):
		respondError(w, http.StatusNotFound, "item_not_in_cart", err.Error())
	case errors.Is(err, store.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, coupon.ErrNotFound):
		respondError(w, http.StatusNotFound, "coupon_not_found", err.Error())
	case errors.As(err, &stockErr):
		respondError(w, http.StatusConflict, "insufficient_stock", stockErr.Error())
	case errors.Is(err, coupon.ErrAlreadyApplied):
		respondError(w, http.StatusConflict, "coupon_already_applied", err.Error())
	case errors.Is(err, store.ErrDuplicateOrder):
		respondError(w, http.StatusConflict, "duplicate_order", err.Error())
	case errors.Is(err, store.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_status_transition", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, coupon.ErrExpired):
		respondError(w, http.StatusUnprocessableEntity, "coupon_expired", err.Error())
	case errors.Is(err, coupon.ErrBelowMinimumPurchase):
		respondError(w, http.StatusUnprocessableEntity, "below_minimum_purchase", err.Error())
	case errors.Is(err, coupon.ErrUnsupportedPromotion):
		respondError(w, http.StatusUnprocessableEntity, "unsupported_promotion", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
