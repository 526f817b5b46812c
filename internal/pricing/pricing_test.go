package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostore/marketplace/internal/domain"
)

func item(productID int64, quantity int, unitPrice string) domain.CartItem {
	return domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString(unitPrice),
		AddedAt:   time.Now(),
	}
}

func coupon(code, amount string) domain.AppliedCoupon {
	return domain.AppliedCoupon{
		Code:   code,
		Kind:   domain.PromotionFixed,
		Amount: decimal.RequireFromString(amount),
	}
}

func TestRecompute_EmptyCart_AllZero(t *testing.T) {
	e := NewEngine(DefaultConfig())

	s := e.Recompute(nil, nil)

	assert.True(t, s.Subtotal.IsZero())
	assert.True(t, s.Shipping.IsZero())
	assert.True(t, s.Tax.IsZero())
	assert.True(t, s.Discount.IsZero())
	assert.True(t, s.Total.IsZero())
}

func TestRecompute_SingleItem(t *testing.T) {
	// price 10.00 x 3, threshold 100, flat fee 10, tax 10%
	e := NewEngine(DefaultConfig())

	s := e.Recompute([]domain.CartItem{item(1, 3, "10.00")}, nil)

	assert.Equal(t, "30", s.Subtotal.String())
	assert.Equal(t, "10", s.Shipping.String())
	assert.Equal(t, "3", s.Tax.String())
	assert.True(t, s.Discount.IsZero())
	assert.Equal(t, "43", s.Total.String())
}

func TestRecompute_CouponReducesTotal(t *testing.T) {
	e := NewEngine(DefaultConfig())

	s := e.Recompute(
		[]domain.CartItem{item(1, 3, "10.00")},
		[]domain.AppliedCoupon{coupon("SAVE10", "3.00")},
	)

	assert.Equal(t, "3", s.Discount.String())
	assert.Equal(t, "40", s.Total.String())
}

func TestRecompute_FreeShippingAboveThreshold(t *testing.T) {
	e := NewEngine(DefaultConfig())

	s := e.Recompute([]domain.CartItem{item(1, 2, "60.00")}, nil)

	assert.Equal(t, "120", s.Subtotal.String())
	assert.True(t, s.Shipping.IsZero())
}

func TestRecompute_SubtotalAtThreshold_ChargesShipping(t *testing.T) {
	// threshold is strict: shipping is free only above it, not at it
	e := NewEngine(DefaultConfig())

	s := e.Recompute([]domain.CartItem{item(1, 1, "100.00")}, nil)

	assert.Equal(t, "10", s.Shipping.String())
}

func TestRecompute_OversizedDiscount_ClampsTotalToZero(t *testing.T) {
	e := NewEngine(DefaultConfig())

	s := e.Recompute(
		[]domain.CartItem{item(1, 1, "5.00")},
		[]domain.AppliedCoupon{coupon("BIG", "500.00")},
	)

	assert.Equal(t, "500", s.Discount.String())
	assert.True(t, s.Total.IsZero(), "total must never go negative")
}

func TestRecompute_MultipleCoupons_FlatSum(t *testing.T) {
	e := NewEngine(DefaultConfig())

	s := e.Recompute(
		[]domain.CartItem{item(1, 3, "10.00")},
		[]domain.AppliedCoupon{coupon("A", "3.00"), coupon("B", "5.00")},
	)

	assert.Equal(t, "8", s.Discount.String())
	assert.Equal(t, "35", s.Total.String())
}

func TestRecompute_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	items := []domain.CartItem{item(1, 3, "19.99"), item(2, 7, "0.35")}
	coupons := []domain.AppliedCoupon{coupon("X", "1.23")}

	first := e.Recompute(items, coupons)
	second := e.Recompute(items, coupons)

	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.Shipping.Equal(second.Shipping))
	require.True(t, first.Tax.Equal(second.Tax))
	require.True(t, first.Discount.Equal(second.Discount))
	require.True(t, first.Total.Equal(second.Total))
}

func TestRecompute_ExactDecimalTax(t *testing.T) {
	// 19.99 * 3 = 59.97, tax 5.997 rounds to 6.00
	e := NewEngine(DefaultConfig())

	s := e.Recompute([]domain.CartItem{item(1, 3, "19.99")}, nil)

	assert.Equal(t, "59.97", s.Subtotal.String())
	assert.Equal(t, "6", s.Tax.String())
}
