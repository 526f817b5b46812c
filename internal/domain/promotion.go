package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromotionType identifies how a promotion's discount is computed.
// Only percentage and fixed have a computation rule; the other two kinds
// exist in the data model but are rejected at validation time.
type PromotionType string

const (
	PromotionPercentage   PromotionType = "percentage"
	PromotionFixed        PromotionType = "fixed"
	PromotionBuyXGetY     PromotionType = "buy_x_get_y"
	PromotionFreeShipping PromotionType = "free_shipping"
)

// Promotion is a named discount rule with an activity window and
// eligibility constraints. Read-only from the cart's perspective.
type Promotion struct {
	ID              int64
	Code            string
	Type            PromotionType
	Value           decimal.Decimal
	MinimumPurchase decimal.Decimal
	MaximumDiscount decimal.NullDecimal // optional cap
	StartDate       time.Time
	EndDate         time.Time
}

// ActiveAt reports whether now falls inside [StartDate, EndDate], inclusive.
func (p *Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}
