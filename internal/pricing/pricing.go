// Package pricing derives a cart's monetary summary from its line items and
// applied coupons. It is pure computation: no I/O, deterministic for the
// same inputs.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/gostore/marketplace/internal/domain"
)

type Config struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.NewFromInt(10),
		TaxRate:               decimal.NewFromFloat(0.10),
	}
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Recompute returns the summary for the given items and coupons.
//
// Coupon amounts were snapshotted at apply-time; they are summed here as-is,
// never re-evaluated against the current subtotal. The total is clamped at
// zero so an oversized discount can never drive it negative.
func (e *Engine) Recompute(items []domain.CartItem, coupons []domain.AppliedCoupon) domain.CartSummary {
	if len(items) == 0 {
		return domain.CartSummary{
			Subtotal: decimal.Zero,
			Shipping: decimal.Zero,
			Tax:      decimal.Zero,
			Discount: decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for i := range items {
		line := items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		subtotal = subtotal.Add(line)
	}

	shipping := e.cfg.FlatShippingFee
	if subtotal.GreaterThan(e.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(e.cfg.TaxRate).Round(2)

	discount := decimal.Zero
	for i := range coupons {
		discount = discount.Add(coupons[i].Amount)
	}

	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return domain.CartSummary{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}
}
