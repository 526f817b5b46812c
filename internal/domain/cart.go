package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-user collection of prospective purchase items plus the
// derived pricing summary. The summary is recomputed inside every mutating
// operation and is never edited directly.
type Cart struct {
	UserID    string          `json:"user_id"`
	Items     []CartItem      `json:"items"`
	Coupons   []AppliedCoupon `json:"coupons"`
	Summary   CartSummary     `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartItem holds the quantity and the unit price captured from the catalog
// at add/update time. The price is not re-read until the item is next
// updated or re-added.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

// AppliedCoupon records a promotion applied to the cart. Amount is computed
// once at application time from the then-current subtotal and summed as-is
// on later pricing passes.
type AppliedCoupon struct {
	Code      string          `json:"code"`
	Kind      PromotionType   `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// CartSummary is a pure function of (items, coupons) at the moment of the
// last recomputation.
type CartSummary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// FindItem returns the index of the line item for productID, or -1.
func (c *Cart) FindItem(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// HasCoupon reports whether a coupon with the given code is already applied.
// Codes are compared case-insensitively so "SAVE10" cannot stack with "save10".
func (c *Cart) HasCoupon(code string) bool {
	for i := range c.Coupons {
		if strings.EqualFold(c.Coupons[i].Code, code) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
