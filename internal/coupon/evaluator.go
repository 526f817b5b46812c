// Package coupon validates promotion codes against a cart and computes
// discount amounts.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gostore/marketplace/internal/domain"
)

var (
	ErrNotFound             = errors.New("coupon code not found")
	ErrExpired              = errors.New("coupon has expired")
	ErrAlreadyApplied       = errors.New("coupon is already applied to this cart")
	ErrBelowMinimumPurchase = errors.New("cart subtotal is below the coupon's minimum purchase")
	ErrUnsupportedPromotion = errors.New("promotion type is not supported")
)

// PromotionLookup finds a promotion by code, case-insensitively.
// A nil promotion with a nil error means no such code exists.
type PromotionLookup interface {
	FindPromotionByCode(ctx context.Context, code string) (*domain.Promotion, error)
}

type Evaluator struct {
	promotions PromotionLookup
}

func NewEvaluator(promotions PromotionLookup) *Evaluator {
	return &Evaluator{promotions: promotions}
}

// Validate checks code against the cart at time now and returns the matching
// promotion. The cart's summary must be freshly recomputed by the caller:
// the minimum-purchase check runs against the pre-discount subtotal.
func (e *Evaluator) Validate(ctx context.Context, code string, cart *domain.Cart, now time.Time) (*domain.Promotion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	promo, err := e.promotions.FindPromotionByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("promotion lookup failed: %w", err)
	}
	if promo == nil {
		return nil, ErrNotFound
	}

	switch promo.Type {
	case domain.PromotionPercentage, domain.PromotionFixed:
	default:
		// buy_x_get_y and free_shipping have no computation rule yet
		return nil, ErrUnsupportedPromotion
	}

	if !promo.ActiveAt(now) {
		if now.After(promo.EndDate) {
			return nil, ErrExpired
		}
		// not yet active is indistinguishable from unknown to the shopper
		return nil, ErrNotFound
	}

	if cart.HasCoupon(promo.Code) {
		return nil, ErrAlreadyApplied
	}

	if cart.Summary.Subtotal.LessThan(promo.MinimumPurchase) {
		return nil, ErrBelowMinimumPurchase
	}

	return promo, nil
}

// ComputeDiscount returns the discount amount for the promotion against the
// given subtotal, capped by the promotion's maximum discount when one is set.
func (e *Evaluator) ComputeDiscount(promo *domain.Promotion, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch promo.Type {
	case domain.PromotionPercentage:
		amount = subtotal.Mul(promo.Value).Div(decimal.NewFromInt(100)).Round(2)
	case domain.PromotionFixed:
		amount = promo.Value
	default:
		return decimal.Zero
	}

	if promo.MaximumDiscount.Valid && amount.GreaterThan(promo.MaximumDiscount.Decimal) {
		amount = promo.MaximumDiscount.Decimal
	}
	return amount
}
